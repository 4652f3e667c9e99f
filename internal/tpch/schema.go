// Package tpch holds the TPC-H schema used by the benchmark queries and
// imports it into an engine.Database.
package tpch

import (
	"fmt"

	"offsetdb/internal/engine"
	"offsetdb/internal/types"
)

const (
	Lineitem = "lineitem"
	Orders   = "orders"
	Customer = "customer"

	// CustOrd maps every customer row to its orders rows.
	CustOrd = "cust_ord"
	// OrdLi maps every orders row to its lineitem rows.
	OrdLi = "ord_li"
)

// Table is one relation of the schema and the file it is read from.
type Table struct {
	Name    string
	File    string
	Columns []engine.ColumnConfig
}

// JoinIndex is a secondary index built once all tables are loaded.
type JoinIndex struct {
	Name             string
	From, FromColumn string
	To, ToColumn     string
}

func col(name string, t types.Descriptor, err error) engine.ColumnConfig {
	if err != nil {
		panic(fmt.Sprintf("tpch column %s: %v", name, err))
	}
	return engine.ColumnConfig{Name: name, Type: t}
}

func integer(name string) engine.ColumnConfig { return col(name, types.IntegerType(), nil) }

func date(name string) engine.ColumnConfig { return col(name, types.DateType(), nil) }

func numeric(name string) engine.ColumnConfig {
	t, err := types.NumericType(12, 2)
	return col(name, t, err)
}

func char(name string, n int) engine.ColumnConfig {
	t, err := types.CharType(n)
	return col(name, t, err)
}

func varchar(name string, n int) engine.ColumnConfig {
	t, err := types.VarcharType(n)
	return col(name, t, err)
}

// Tables returns the schema in import order.
func Tables() []Table {
	return []Table{
		{
			Name: Lineitem, File: Lineitem,
			Columns: []engine.ColumnConfig{
				integer("l_orderkey"),
				integer("l_partkey"),
				integer("l_suppkey"),
				integer("l_linenumber"),
				numeric("l_quantity"),
				numeric("l_extendedprice"),
				numeric("l_discount"),
				numeric("l_tax"),
				char("l_returnflag", 1),
				char("l_linestatus", 1),
				date("l_shipdate"),
				date("l_commitdate"),
				date("l_receiptdate"),
				char("l_shipinstruct", 25),
				char("l_shipmode", 10),
				varchar("l_comment", 44),
			},
		},
		{
			Name: Orders, File: Orders,
			Columns: []engine.ColumnConfig{
				integer("o_orderkey"),
				integer("o_custkey"),
				char("o_orderstatus", 1),
				numeric("o_totalprice"),
				date("o_orderdate"),
				char("o_orderpriority", 15),
				char("o_clerk", 15),
				integer("o_shippriority"),
				varchar("o_comment", 79),
			},
		},
		{
			Name: Customer, File: Customer,
			Columns: []engine.ColumnConfig{
				integer("c_custkey"),
				varchar("c_name", 25),
				varchar("c_address", 40),
				integer("c_nationkey"),
				char("c_phone", 15),
				numeric("c_acctbal"),
				char("c_mktsegment", 10),
				varchar("c_comment", 117),
			},
		},
	}
}

// Indexes returns the join indexes of the schema.
func Indexes() []JoinIndex {
	return []JoinIndex{
		{Name: CustOrd, From: Customer, FromColumn: "c_custkey", To: Orders, ToColumn: "o_custkey"},
		{Name: OrdLi, From: Orders, FromColumn: "o_orderkey", To: Lineitem, ToColumn: "l_orderkey"},
	}
}

// TableNamed looks up one table of the schema by name.
func TableNamed(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
