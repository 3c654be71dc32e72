package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/rs/zerolog"

	"github.com/gigurra/cis-flows/internal"
)

type Params struct {
	Files      []string `descr:"Publication workbooks, directories of them or glob patterns" positional:"true" optional:"true"`
	Config     string   `descr:"Path to config file (default ~/.flowstar/config.yaml)" optional:"true"`
	Export     string   `descr:"Write the star schema workbook to this path (overrides config)" optional:"true"`
	AuditLog   string   `descr:"Append skipped-sheet entries to this file (overrides config)" optional:"true"`
	Output     string   `descr:"Output format" alts:"table,json" default:"table"`
	Sample     int      `descr:"Print sample rows of both source sheets for this date key (YYYYMMDD)" default:"0"`
	Explore    bool     `descr:"Print quarter coverage and data quality views of the sources" optional:"true"`
	Fetch      bool     `descr:"Download publications from the publisher before running" optional:"true"`
	InitConfig bool     `descr:"Write a config template with every default and exit" optional:"true"`
	Verbose    bool     `descr:"Log debug output" optional:"true"`
}

func main() {
	boa.NewCmdT[Params]("flowstar").
		WithShort("Build a star schema of collective investment scheme flows").
		WithLong("Extracts the Analysis and CIS Funds sheets from quarterly fund statistics workbooks, cleans them and builds a fact table with conformed dimensions, ready for a BI tool.").
		WithRunFunc(func(params *Params) {
			if err := run(params, os.Stdout, os.Stderr); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}).
		Run()
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// run writes the summary to stdout and explore output to stderr
func run(params *Params, stdout, stderr io.Writer) error {
	logger := newLogger(params.Verbose)

	configPath := params.Config
	if configPath == "" {
		configPath = internal.DefaultConfigPath()
	}

	if params.InitConfig {
		if configPath == "" {
			return errors.New("no config path, pass --config")
		}
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config already exists at %s", configPath)
		}
		if err := internal.GenerateConfigTemplate().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote config template to %s\n", configPath)
		return nil
	}

	cfg, err := internal.LoadConfigOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if params.AuditLog != "" {
		cfg.AuditLog = params.AuditLog
	}
	if params.Export != "" {
		cfg.Export.Path = params.Export
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sources, err := collectSources(ctx, params, cfg, logger)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no publications given, pass files or --fetch")
	}

	skipped := &internal.MemoryAudit{}
	audit := internal.AuditLog(skipped)
	if cfg.AuditLog != "" {
		f, err := openAuditLog(cfg.AuditLog)
		if err != nil {
			return err
		}
		defer f.Close()
		audit = internal.TeeAudit(internal.NewJSONAudit(f), skipped)
	}

	res, err := internal.NewPipeline(cfg, audit, logger).Run(sources)
	if err != nil {
		return err
	}

	if params.Explore || params.Sample != 0 {
		explorer := internal.NewExplorer(res.RawAnalysis, res.RawCISFunds)
		internal.PrintCoverage(stderr, explorer)
		if params.Explore {
			internal.PrintTable(stderr, "Fund codes with several names", explorer.FundCodeMultiMapping(internal.ColFundCode))
			internal.PrintTable(stderr, "Invalid sector codes", explorer.InvalidSectorCodes())
			internal.PrintTable(stderr, "Numeric fund codes", explorer.NumericFundCodes())
		}
		if params.Sample != 0 {
			internal.PrintTable(stderr, fmt.Sprintf("Analysis %d", params.Sample), explorer.SampleAnalysis(params.Sample))
			internal.PrintTable(stderr, fmt.Sprintf("CIS Funds %d", params.Sample), explorer.SampleCISFunds(params.Sample))
		}
	}

	if cfg.Export.Path != "" {
		if err := internal.NewExporter(cfg.Export, logger).Export(cfg.Export.Path, res.Tables()); err != nil {
			return err
		}
	}

	if params.Output == "json" {
		return internal.PrintSummaryJSON(stdout, res, skipped.Entries(), cfg)
	}
	internal.PrintRunSummary(stdout, res, skipped.Entries(), cfg, internal.NewMoney(cfg.Currency))
	return nil
}

func collectSources(ctx context.Context, params *Params, cfg *internal.Config, logger zerolog.Logger) ([]internal.Source, error) {
	paths, err := internal.ExpandSourcePaths(params.Files)
	if err != nil {
		return nil, err
	}
	sources, err := internal.LoadSources(paths)
	if err != nil {
		return nil, err
	}
	if params.Fetch {
		fetched, err := internal.NewFetcher(cfg.Fetch, logger).Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching publications: %w", err)
		}
		sources = append(sources, fetched...)
	}
	logger.Info().Int("sources", len(sources)).Msg("Loaded publications")
	return sources, nil
}

// openAuditLog opens the audit file for appending, creating it and its directory if needed
func openAuditLog(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return f, nil
}
