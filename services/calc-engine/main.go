package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"deal_engine/pkg/core/dscr"
	"deal_engine/pkg/core/ingest"
	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/core/logging"
	"deal_engine/pkg/core/pipeline"
	"deal_engine/pkg/models"
)

type options struct {
	statement string
	doc       string
	file      string
	price     float64
	exit      float64
	industry  string
	tables    string
	mode      string
	verbose   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.statement, "statement", "", "Statement payload file (JSON, repaired JSON or Hjson); - reads stdin")
	flag.StringVar(&opts.doc, "doc", "", "Document text used for classification")
	flag.StringVar(&opts.file, "file", "", "Source file name used for classification")
	flag.Float64Var(&opts.price, "price", 0, "Asking price from the source document")
	flag.Float64Var(&opts.exit, "exit", 0, "Custom exit value")
	flag.StringVar(&opts.industry, "industry", "", "Skip classification and use this industry")
	flag.StringVar(&opts.tables, "tables", "", "Industry tables YAML (default: embedded)")
	flag.StringVar(&opts.mode, "mode", "model", "Mode: model, dscr or classify")
	flag.BoolVar(&opts.verbose, "v", false, "Log to stderr")
	flag.Parse()

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	if opts.statement == "" {
		return fmt.Errorf("no statement provided (-statement)")
	}

	var raw []byte
	var err error
	if opts.statement == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(opts.statement)
	}
	if err != nil {
		return fmt.Errorf("read statement: %w", err)
	}

	st, err := ingest.DecodeStatement(raw)
	if err != nil {
		return err
	}

	tables, err := knowledge.Default()
	if opts.tables != "" {
		tables, err = knowledge.LoadFile(opts.tables)
	}
	if err != nil {
		return err
	}

	level := "error"
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	in := pipeline.Input{
		Statement:        st.Statement,
		DocumentText:     opts.doc,
		FileName:         opts.file,
		IndustryOverride: models.IndustryType(opts.industry),
		Warnings:         st.Warnings,
	}
	if opts.price > 0 {
		in.ExtractedPrice = &models.ExtractedPurchasePrice{Amount: opts.price, SourceConfidence: 1, DocumentSourced: true, Source: "command line"}
	}
	if opts.exit > 0 {
		in.CustomExitValue = &opts.exit
	}

	orch := pipeline.NewOrchestrator(tables, logger)

	var out interface{}
	switch opts.mode {
	case "classify":
		out = orch.Profile(in)
	case "model", "dscr":
		res, err := orch.Run(context.Background(), in)
		if err != nil {
			return err
		}
		out = res
		if opts.mode == "dscr" {
			out = dscr.Analyze(res.Projection.DSCR, orch.Thresholds())
		}
	default:
		return fmt.Errorf("unknown mode: %s", opts.mode)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
