package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vinodismyname/mcpreports/config"
	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/loader"
	"github.com/vinodismyname/mcpreports/internal/report"
	"github.com/vinodismyname/mcpreports/pkg/version"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	schema   string
	sheet    string
	nullKeys string
	label    string
	verbose  bool
	cfg      *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "reportctl",
		Short:        "Survey activity reports from .dta, .csv and .xlsx files",
		Version:      version.Read().String(),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.schema, "schema", "date_publisher", "required columns: date_publisher, monitor or none")
	pf.StringVar(&g.sheet, "sheet", "", "worksheet for Excel files (default first sheet)")
	pf.StringVar(&g.nullKeys, "null-keys", "", "null grouping keys: drop or bucket (default from MCPREPORTS_NULL_KEYS)")
	pf.StringVar(&g.label, "unknown-label", "", "label for bucketed null keys")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newValidateCmd(g),
		newSummarizeCmd(g),
		newPivotCmd(g),
		newDashboardCmd(g),
	)
	return root
}

func (g *globals) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	g.cfg = cfg
	if g.nullKeys == "" {
		g.nullKeys = cfg.NullKeys
	}
	if g.label == "" {
		g.label = cfg.UnknownKeyLabel
	}
	if g.nullKeys != config.NullKeysDrop && g.nullKeys != config.NullKeysBucket {
		return fmt.Errorf("--null-keys must be %s or %s, got %q", config.NullKeysDrop, config.NullKeysBucket, g.nullKeys)
	}

	level := zerolog.InfoLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithContext(ctx))
	return nil
}

// load reads path against the selected schema.
func (g *globals) load(ctx context.Context, path string) (*dataset.Dataset, error) {
	schema, ok := dataset.SchemaByName(g.schema)
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", g.schema)
	}
	start := time.Now()
	ds, err := loader.Load(ctx, path, loader.Options{Schema: schema, Sheet: g.sheet, MaxRows: g.cfg.MaxRowsPerLoad})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Int("rows", ds.Len()).Dur("elapsed", time.Since(start)).Msg("dataset loaded")
	return ds, nil
}

func (g *globals) options() []report.Option {
	opts := []report.Option{report.Parallel(config.DefaultParallelWorkers, config.DefaultParallelThreshold)}
	if g.nullKeys == config.NullKeysBucket {
		opts = append(opts, report.BucketNullKeys(g.label))
	}
	return opts
}
