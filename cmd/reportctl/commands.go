package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vinodismyname/mcpreports/internal/dashboard"
	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/loader"
	"github.com/vinodismyname/mcpreports/internal/render"
	"github.com/vinodismyname/mcpreports/internal/report"
)

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a file for the columns its schema requires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, ok := dataset.SchemaByName(g.schema)
			if !ok {
				return fmt.Errorf("unknown schema %q", g.schema)
			}
			t, err := loader.ReadTable(cmd.Context(), args[0], loader.Options{Sheet: g.sheet, MaxRows: g.cfg.MaxRowsPerLoad})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = dataset.ValidateSchema(t, schema.Required())
			var se *dataset.SchemaError
			if errors.As(err, &se) {
				fmt.Fprintf(out, "missing columns: %s\n", strings.Join(se.Missing, ", "))
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ok: %s\n", strings.Join(t.Columns(), ", "))
			return nil
		},
	}
}

func newSummarizeCmd(g *globals) *cobra.Command {
	var (
		keys    []string
		metrics []string
		orderBy string
		asc     bool
	)
	cmd := &cobra.Command{
		Use:   "summarize <file>",
		Short: "Group rows by key columns and compute metrics",
		Example: `  reportctl summarize survey.dta --by publisher_id --metric count --metric sum:duration_minutes
  reportctl summarize survey.csv --by date,publisher_id --metric mean:duration_minutes --order-by count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := report.ParseMetrics(metrics)
			if err != nil {
				return err
			}
			opts := g.options()
			if orderBy != "" {
				i := metricIndex(ms, orderBy)
				if i < 0 {
					return fmt.Errorf("--order-by %q is not one of the requested metrics", orderBy)
				}
				opts = append(opts, report.OrderBy(i, !asc))
			}
			ds, err := g.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s, err := report.SummarizeBy(ds, keys, ms, opts...)
			if err != nil {
				return err
			}
			if s.Excluded > 0 {
				zerolog.Ctx(cmd.Context()).Warn().Int("excluded", s.Excluded).Msg("rows with null keys left out")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), render.Table(dashboard.FromSummary("Summary", nil, s)))
			return err
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&keys, "by", nil, "grouping columns, in order")
	f.StringArrayVar(&metrics, "metric", []string{"count"}, "metric spec: count, count:col, sum:col, mean:col or distinct:col (repeatable)")
	f.StringVar(&orderBy, "order-by", "", "metric to sort by, e.g. count or sum:duration_minutes (default first metric)")
	f.BoolVar(&asc, "asc", false, "sort ascending")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newPivotCmd(g *globals) *cobra.Command {
	var rows, cols, metric string
	cmd := &cobra.Command{
		Use:   "pivot <file>",
		Short: "Cross-tabulate one metric by two key columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := report.ParseMetric(metric)
			if err != nil {
				return err
			}
			ds, err := g.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := report.Pivot(ds, rows, cols, m, g.options()...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), render.Table(dashboard.FromPivot("Pivot", p, report.DefaultLabel)))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&rows, "rows", dataset.ColPublisher, "row key column")
	f.StringVar(&cols, "cols", dataset.ColDate, "column key column")
	f.StringVar(&metric, "metric", "count", "metric spec")
	return cmd
}

func newDashboardCmd(g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dashboard <file>",
		Short: "Build the full activity report, as text or an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out != "" && !strings.EqualFold(filepath.Ext(out), ".xlsx") {
				return fmt.Errorf("--out must end in .xlsx")
			}
			ctx := cmd.Context()
			ds, err := g.load(ctx, args[0])
			if err != nil {
				return err
			}
			r, err := dashboard.Build(ds, g.options()...)
			if err != nil {
				return err
			}
			if out == "" {
				return render.WriteReport(cmd.OutOrStdout(), r)
			}
			sum, err := render.WriteWorkbook(ctx, r, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d sheets)\n", sum.Path, len(sum.Sheets))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write an .xlsx workbook instead of text")
	return cmd
}

// metricIndex finds spec among ms, accepting either form ParseMetric reads.
func metricIndex(ms []report.Metric, spec string) int {
	want, err := report.ParseMetric(spec)
	if err != nil {
		return -1
	}
	for i, m := range ms {
		if m == want {
			return i
		}
	}
	return -1
}
