// Copyright (c) Microsoft. All rights reserved.

package tools

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// Stats summarizes a list of numbers.
type Stats struct {
	Count    int     `json:"count"`
	Sum      float64 `json:"sum"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Range    float64 `json:"range"`
	StdDev   float64 `json:"stdDev"`
	Variance float64 `json:"variance"`
}

type summaryArgs struct {
	Numbers []float64 `json:"numbers" jsonschema:"description=Numbers to summarize,required"`
}

func summaryStatsTool() (*ak.Tool, error) {
	return ak.NewTypedTool("summary_stats",
		"Compute count, sum, mean, median, range and standard deviation of numbers.",
		func(_ context.Context, a summaryArgs) (any, error) {
			if len(a.Numbers) == 0 {
				return nil, fail("no numbers provided")
			}
			return summarize(a.Numbers), nil
		})
}

func summarize(nums []float64) Stats {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	n := len(sorted)

	st := Stats{Count: n, Min: sorted[0], Max: sorted[n-1]}
	for _, v := range sorted {
		st.Sum += v
	}
	st.Mean = st.Sum / float64(n)
	if n%2 == 0 {
		st.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		st.Median = sorted[n/2]
	}
	for _, v := range sorted {
		st.Variance += (v - st.Mean) * (v - st.Mean)
	}
	st.Variance /= float64(n)
	st.StdDev = math.Sqrt(st.Variance)
	st.Range = st.Max - st.Min

	st.Sum, st.Mean, st.Median = round2(st.Sum), round2(st.Mean), round2(st.Median)
	st.Variance, st.StdDev, st.Range = round2(st.Variance), round2(st.StdDev), round2(st.Range)
	return st
}

// CSVReport describes a parsed CSV document.
type CSVReport struct {
	Columns []string         `json:"columns"`
	Rows    int              `json:"rows"`
	Skipped int              `json:"skipped,omitempty"`
	Numeric map[string]Stats `json:"numeric,omitempty"`
}

func processCSVTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("process_csv").
		Describe("Parse CSV text with a header row and summarize its numeric columns.").
		Param(ak.Param{Name: "csv", Type: ak.TypeString, Required: true, Description: "CSV text, header first"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			return processCSV(args.String("csv"))
		}).
		Build()
}

func processCSV(text string) (*CSVReport, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fail("invalid CSV: %v", err)
	}
	if len(records) < 2 {
		return nil, fail("need a header and at least one data row")
	}

	rep := &CSVReport{Columns: records[0]}
	var rows [][]string
	for _, rec := range records[1:] {
		if len(rec) != len(rep.Columns) {
			rep.Skipped++
			continue
		}
		rows = append(rows, rec)
	}
	rep.Rows = len(rows)

	for col, name := range rep.Columns {
		var values []float64
		for _, row := range rows {
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64); err == nil {
				values = append(values, v)
			}
		}
		// A column counts as numeric when most of its cells parse.
		if len(values) > 0 && float64(len(values)) > 0.7*float64(len(rows)) {
			if rep.Numeric == nil {
				rep.Numeric = make(map[string]Stats)
			}
			rep.Numeric[name] = summarize(values)
		}
	}
	return rep, nil
}

func formatDataTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("format_data").
		Describe("Reformat JSON data as pretty JSON, an aligned table or a bullet list.").
		Param(ak.Param{Name: "data", Type: ak.TypeString, Required: true, Description: "JSON object or array"}).
		Param(ak.Param{Name: "format", Type: ak.TypeString, Enum: []string{"json", "table", "list"}, Description: "Output format (default json)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			var v any
			if err := json.Unmarshal([]byte(args.String("data")), &v); err != nil {
				return nil, fail("data is not valid JSON: %v", err)
			}
			switch args.String("format") {
			case "table":
				return formatTable(v)
			case "list":
				return formatList(v), nil
			default:
				b, _ := json.MarshalIndent(v, "", "  ")
				return string(b), nil
			}
		}).
		Build()
}

func formatTable(v any) (string, error) {
	var rows []map[string]any
	switch t := v.(type) {
	case map[string]any:
		rows = []map[string]any{t}
	case []any:
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return "", fail("table format needs an array of objects")
			}
			rows = append(rows, m)
		}
	default:
		return "", fail("table format needs an object or an array of objects")
	}

	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if val, ok := r[c]; ok {
				cells[i] = fmt.Sprint(val)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return sb.String(), nil
}

func formatList(v any) string {
	var sb strings.Builder
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %v\n", k, t[k])
		}
	case []any:
		for _, item := range t {
			fmt.Fprintf(&sb, "- %v\n", item)
		}
	default:
		fmt.Fprintf(&sb, "- %v\n", t)
	}
	return sb.String()
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
