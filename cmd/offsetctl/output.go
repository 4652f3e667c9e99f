package main

import (
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"offsetdb/internal/models"
)

const (
	bold  = "\x1b[1m"
	reset = "\x1b[0m"
)

// printer writes aligned, highlighted tables to a terminal and plain
// tab-separated rows when stdout is piped.
type printer struct {
	w     io.Writer
	errW  io.Writer
	p     *message.Printer
	json  bool
	isTTY bool
}

func newPrinter(asJSON bool) *printer {
	fd := os.Stdout.Fd()
	return &printer{
		w:     colorable.NewColorableStdout(),
		errW:  colorable.NewColorableStderr(),
		p:     message.NewPrinter(language.English),
		json:  asJSON,
		isTTY: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

func (o *printer) emit(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *printer) number(n int64) string {
	if !o.isTTY {
		return strconv.FormatInt(n, 10)
	}
	return o.p.Sprintf("%d", n)
}

func (o *printer) table(header []string, rows [][]string) error {
	if !o.isTTY {
		var sb strings.Builder
		sb.WriteString(strings.Join(header, "\t") + "\n")
		for _, r := range rows {
			sb.WriteString(strings.Join(r, "\t") + "\n")
		}
		_, err := io.WriteString(o.w, sb.String())
		return err
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	io.WriteString(tw, bold+strings.Join(header, "\t")+reset+"\t\n")
	for _, r := range rows {
		io.WriteString(tw, strings.Join(r, "\t")+"\t\n")
	}
	return tw.Flush()
}

// timing reports one run on stderr so it never mixes with result rows.
func (o *printer) timing(query string, run, tuples int, d time.Duration) {
	rate := float64(tuples) / d.Seconds()
	o.p.Fprintf(o.errW, "%s run %d: %v, %d tuples, %.0f tuples/s\n", query, run, d.Round(time.Microsecond), tuples, rate)
}

func (o *printer) stats(stats []models.RelationStats, elapsed time.Duration) error {
	if o.json {
		return o.emit(stats)
	}
	var rows [][]string
	for _, r := range stats {
		rows = append(rows, []string{r.Name, "", "", o.number(int64(r.Tuples))})
		for _, c := range r.Columns {
			rows = append(rows, []string{"", c.Name, c.Type, o.number(int64(c.Unique))})
		}
	}
	if err := o.table([]string{"relation", "column", "type", "count"}, rows); err != nil {
		return err
	}
	o.p.Fprintf(o.errW, "loaded in %v\n", elapsed.Round(time.Millisecond))
	return nil
}
