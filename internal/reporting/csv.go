package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"tt-analysis/internal/domain"
)

// Title is the first row of every output file.
const Title = "Timeout-Tree (TT) analysis"

var staticDescriptions = [][]string{
	{"active", "rollover", "ave size", "max size"},
	{"period", "period", "of txs", "of txs"},
	{"(blocks)", "(blocks)", "(vbytes)", "(vbytes)"},
}

// OutputHeaders are the 15 columns of a result row: the six scenario inputs
// followed by the nine metrics.
var OutputHeaders = append(append([]string{}, domain.ScenarioHeaders...), domain.ResultHeaders...)

var outputDescriptions = [][]string{
	{
		"feerate", "feerate", "prob", "leaves", "value of all", "cost of",
		"fraction of block", "delay for putting", "delay for putting", "capital cost",
		"fraction of funder's", "max fee", "max fee per", "expected fee per", "capital cost plus",
	},
	{
		"base", "exponent", "TT put", "across all TTs", "leaves put together", "capital",
		"space devoted to", "leaves onchain", "leaves onchain", "per leaf",
		"funds used by", "per onchain leaf", "onchain leaf as fraction", "leaf", "expected fee per leaf as",
	},
	{
		"(sats/vbyte)", "", "onchain", "", "(BTC)", "",
		"leaves", "(blocks)", "(years)", "(sats)",
		"casual user", "(sats)", "of casual user's funds", "(sats)", "fraction of casual user's funds",
	},
}

// blankRow is written as a quoted empty field, the way Python's csv module
// writes a one-column row holding "". encoding/csv would emit a bare line end.
var blankRow = []string{""}

const quotedBlankLine = "\"\"\r\n"

// CSVWriter writes the analysis output file incrementally. Lines end in CRLF,
// blank rows are quoted and floats use Python repr formatting, so output
// diffs cleanly against out_tt_analysis files from the Python script.
// Call WriteHeader once, WriteRow per solved scenario, then Close.
type CSVWriter struct {
	out           io.Writer
	w             *csv.Writer
	headerWritten bool
}

// NewCSVWriter creates a CSVWriter over w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return &CSVWriter{out: w, w: cw}
}

func isBlank(row []string) bool {
	return len(row) == 1 && row[0] == ""
}

// writeRows writes rows and flushes.
func (c *CSVWriter) writeRows(rows [][]string) error {
	for _, row := range rows {
		if !isBlank(row) {
			if err := c.w.Write(row); err != nil {
				return err
			}
			continue
		}
		c.w.Flush()
		if err := c.w.Error(); err != nil {
			return err
		}
		if _, err := io.WriteString(c.out, quotedBlankLine); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// WriteHeader writes the title, the static parameter block and the result column headers.
func (c *CSVWriter) WriteHeader(st domain.StaticParameters) error {
	if c.headerWritten {
		return fmt.Errorf("csv header already written")
	}

	rows := [][]string{{Title}, blankRow, domain.StaticHeaders}
	rows = append(rows, staticDescriptions...)
	rows = append(rows, formatInts(st.Values()), blankRow)
	rows = append(rows, resultHeaderRows()...)

	if err := c.writeRows(rows); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	c.headerWritten = true
	return nil
}

// WriteRow writes one result row and flushes it.
func (c *CSVWriter) WriteRow(sc domain.ScenarioParameters, res *domain.OptimizationResult) error {
	if !c.headerWritten {
		return fmt.Errorf("csv header not written")
	}
	if err := c.writeRows([][]string{FormatRow(sc, res)}); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Close writes the footer (the result column headers repeated) and flushes.
func (c *CSVWriter) Close() error {
	if !c.headerWritten {
		return fmt.Errorf("csv header not written")
	}
	if err := c.writeRows(resultHeaderRows()); err != nil {
		return fmt.Errorf("write csv footer: %w", err)
	}
	return nil
}

// FormatRow formats the inputs and metrics of one scenario. Le and
// SecurityDelayBlocks are integers; Va is written as an integer when it is one.
func FormatRow(sc domain.ScenarioParameters, res *domain.OptimizationResult) []string {
	return []string{
		formatFloat(sc.BaseFeerate),
		formatFloat(sc.FeerateExponent),
		formatFloat(sc.OnchainProbability),
		strconv.FormatInt(sc.LeafCount, 10),
		formatValue(sc.TotalValue),
		formatFloat(sc.CapitalCostRate),
		formatFloat(res.FractionTTLeaves),
		strconv.FormatInt(res.SecurityDelayBlocks, 10),
		formatFloat(res.SecurityDelayYears),
		formatFloat(res.CapitalCost),
		formatFloat(res.CapitalEfficiency),
		formatFloat(res.OnchainFee),
		formatFloat(res.OnchainFeeFraction),
		formatFloat(res.ExpectedOnchainFee),
		formatFloat(res.ExpectedOverheadFraction),
	}
}

// RenderCSV renders a complete output file for a stored report.
func RenderCSV(r *Report) (string, error) {
	var sb strings.Builder

	w := NewCSVWriter(&sb)
	if err := w.WriteHeader(r.Static); err != nil {
		return "", err
	}
	for i := range r.Rows {
		if err := w.WriteRow(r.Rows[i].Scenario, &r.Rows[i].Result); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

func resultHeaderRows() [][]string {
	rows := [][]string{OutputHeaders}
	return append(rows, outputDescriptions...)
}

// formatFloat formats v like Python's repr: shortest round-trip digits,
// exponent form outside [1e-4, 1e16), and ".0" on integral values.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// formatValue writes whole-BTC totals without a fraction.
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return formatFloat(v)
}

func formatInts(vals []int64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatInt(v, 10)
	}
	return out
}
