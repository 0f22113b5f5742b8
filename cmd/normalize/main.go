package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"volatility-observer/src/analysis/core"

	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "normalize: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

// run positions -value (or every sample when -value is omitted) within the
// robust range of the samples read from args, or from stdin without args.
func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(stdout)
	value := fs.String("value", "", "value to position within the sample range (default: every sample)")
	kFactor := fs.Float64("k", core.DefaultKFactor, "Tukey fence multiplier")
	percentile := fs.Float64("p", core.DefaultPercentile, "winsorization percentile, in (0, 0.5)")
	debug := fs.Bool("debug", false, "print range diagnostics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var data []float64
	var err error
	if fs.NArg() > 0 {
		data, err = parseSamples(strings.Join(fs.Args(), " "))
	} else {
		data, err = readSamples(stdin)
	}
	if err != nil {
		return err
	}

	opts := core.NormalizeOptions{KFactor: *kFactor, Percentile: *percentile}
	if err := opts.Validate(); err != nil {
		return err
	}

	stats, ok := core.AnalyzeRange(data, opts)

	t := table.NewWriter()
	t.SetOutputMirror(stdout)
	t.SetTitle("Robust Range Ratio")
	t.AppendHeader(table.Row{"VALUE", "RATIO"})
	if *value != "" {
		v, err := strconv.ParseFloat(*value, 64)
		if err != nil {
			return fmt.Errorf("invalid -value %q: %w", *value, err)
		}
		t.AppendRow(table.Row{formatNumber(v), formatRatio(stats, ok, v)})
	} else {
		for _, v := range data {
			t.AppendRow(table.Row{formatNumber(v), formatRatio(stats, ok, v)})
		}
	}
	t.Render()

	if *debug && ok {
		writeStats(stdout, stats)
	}
	return nil
}

// -----------------------------------------------------------------------------

func writeStats(w io.Writer, s core.RangeStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Range Diagnostics")
	t.AppendHeader(table.Row{"", "LOW", "HIGH"})
	t.AppendRows([]table.Row{
		{"Quartiles", formatNumber(s.Q1), formatNumber(s.Q3)},
		{"Fence", formatNumber(s.LowerBound), formatNumber(s.UpperBound)},
		{"Adjusted Fence", formatNumber(s.AdjustedLower), formatNumber(s.AdjustedUpper)},
		{"Clamp", formatNumber(s.LowClamp), formatNumber(s.HighClamp)},
		{"Winsorized", formatNumber(s.Min), formatNumber(s.Max)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Samples", fmt.Sprintf("%d", s.Count), ""},
		{"Outliers", fmt.Sprintf("%6.2f%%", s.OutlierRatio*100), ""},
		{"Adjusted k", formatNumber(s.AdjustedKFactor), ""},
	})
	t.Render()
}

// -----------------------------------------------------------------------------

func formatRatio(stats core.RangeStats, ok bool, v float64) string {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return "null"
	}
	return strconv.FormatFloat(stats.Ratio(v), 'f', 4, 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// -----------------------------------------------------------------------------

func readSamples(r io.Reader) ([]float64, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte(' ')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	return parseSamples(sb.String())
}

// parseSamples accepts numbers separated by whitespace or commas.
func parseSamples(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	data := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sample %q: %w", f, err)
		}
		data = append(data, v)
	}
	return data, nil
}
