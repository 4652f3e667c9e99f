package tpch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offsetdb/internal/engine"
	"offsetdb/internal/types"
)

var sources = map[string][]string{
	Customer: {
		"1|Customer#000000001|IVhzIApeRb ot,c,E|15|25-989-741-2988|711.56|BUILDING|to the even, regular platelets. regular, ironic epitaphs nag e|",
		"2|Customer#000000002|XSTf4,NCwDVaWNe6tEgvwfmRchLXak|13|23-768-687-3665|121.65|AUTOMOBILE|l accounts. blithely ironic theodolites integrate boldly: caref|",
	},
	Orders: {
		"1|2|O|173665.47|1996-01-02|5-LOW|Clerk#000000951|0|nstructions sleep furiously among |",
		"2|1|O|46929.18|1996-12-01|1-URGENT|Clerk#000000880|0| foxes. pending accounts at the pending, silent asymptot|",
		"3|1|F|193846.25|1993-10-14|5-LOW|Clerk#000000955|0|sly final accounts boost. carefully regular ideas cajole carefully. depos|",
	},
	Lineitem: {
		"1|155190|7706|1|17|21168.23|0.04|0.02|N|O|1996-03-13|1996-02-12|1996-03-22|DELIVER IN PERSON|TRUCK|egular courts above the|",
		"3|4297|1798|1|45|54058.05|0.06|0.00|R|F|1994-02-02|1994-01-04|1994-02-23|NONE|AIR|ongside of the furiously brave acco|",
		"1|67310|7311|2|36|45983.16|0.09|0.06|N|O|1996-04-12|1996-02-28|1996-04-20|TAKE BACK RETURN|MAIL|ly final dependencies: slyly bold |",
		"2|106170|1191|1|38|44694.46|0.00|0.05|N|O|1997-01-28|1997-01-14|1997-02-02|TAKE BACK RETURN|RAIL|ven requests. deposits breach a|",
	},
}

func writeSources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, lines := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".tbl"), []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	}
	return dir
}

func TestImport(t *testing.T) {
	dir := writeSources(t)
	db := engine.NewDatabase()
	require.NoError(t, Import(context.Background(), dir, db, Options{}))

	rels := db.Relations()
	require.Len(t, rels, 3)
	for _, rel := range rels {
		assert.Equal(t, len(sources[rel.Name]), rel.NrTuples, rel.Name)
		require.NoError(t, rel.Validate(), rel.Name)
	}

	li, err := db.Relation(Lineitem)
	require.NoError(t, err)
	assert.Len(t, li.Columns(), 16)
	comments, err := engine.Dict[types.Varchar](li, "l_comment")
	require.NoError(t, err)
	assert.Equal(t, types.Varchar("egular courts above the"), comments.Value(0))

	// customer 1 has orders rows 1 and 2, customer 2 has row 0.
	bounds, err := db.Index(CustOrd)
	require.NoError(t, err)
	vals, err := db.Index(CustOrd + "_vals")
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3}, bounds)
	assert.Equal(t, []uint32{1, 2, 0}, vals)

	// order 1 has lineitem rows 0 and 2, order 2 row 3, order 3 row 1.
	bounds, err = db.Index(OrdLi)
	require.NoError(t, err)
	vals, err = db.Index(OrdLi + "_vals")
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3, 4}, bounds)
	assert.Equal(t, []uint32{0, 2, 3, 1}, vals)
}

func TestImportFromCacheAndRebuild(t *testing.T) {
	dir := writeSources(t)
	require.NoError(t, Import(context.Background(), dir, engine.NewDatabase(), Options{}))

	require.NoError(t, os.Remove(filepath.Join(dir, Customer+".tbl")))
	db := engine.NewDatabase()
	require.NoError(t, Import(context.Background(), dir, db, Options{}))
	cust, err := db.Relation(Customer)
	require.NoError(t, err)
	assert.Equal(t, 2, cust.NrTuples)

	err = Import(context.Background(), dir, engine.NewDatabase(), Options{Rebuild: true})
	var ioErr *engine.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open source", ioErr.Op)
}

func TestImportSelectedTables(t *testing.T) {
	dir := writeSources(t)
	db := engine.NewDatabase()
	require.NoError(t, Import(context.Background(), dir, db, Options{Tables: []string{Orders, Lineitem}}))

	_, err := db.Relation(Customer)
	var lookupErr *engine.LookupError
	require.ErrorAs(t, err, &lookupErr)
	_, err = db.Index(CustOrd)
	require.ErrorAs(t, err, &lookupErr)
	_, err = db.Index(OrdLi)
	require.NoError(t, err)

	err = Import(context.Background(), dir, engine.NewDatabase(), Options{Tables: []string{"nation"}})
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "nation", lookupErr.Name)
}

func TestSchemaTypesAreInCatalogue(t *testing.T) {
	for _, table := range Tables() {
		for _, c := range table.Columns {
			_, err := types.Lookup(c.Type.Logical, c.Type.Size, c.Type.Precision)
			assert.NoError(t, err, "%s.%s", table.Name, c.Name)
		}
	}
}
