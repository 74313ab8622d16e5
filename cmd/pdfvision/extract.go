package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pdfvision/internal/config"
	"github.com/jackzampolin/pdfvision/internal/extract"
	"github.com/jackzampolin/pdfvision/internal/llmcall"
	"github.com/jackzampolin/pdfvision/internal/pdf"
	"github.com/jackzampolin/pdfvision/internal/providers"
	"github.com/jackzampolin/pdfvision/internal/schema"
)

// callLogDefault marks a bare --call-log flag.
const callLogDefault = "home"

var (
	extractStartPage int
	extractEndPage   int
	extractSchema    string
	extractPreset    string
	extractExample   string
	extractFields    string
	extractSave      bool
	extractOut       string
	extractAPIKey    string
	extractQuiet     bool
	extractCallLog   string
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract structured data from a PDF",
	Long: `Extract structured data from a PDF.

Pages are rendered with pdftoppm, sent to the configured vision model in
batches and returned as one record per page plus an accumulated record.
Batches that fail every retry are replaced with degraded placeholder
records; the run itself only fails on missing input or credentials.

The schema comes from --schema (JSON file or inline JSON), --schema-example
(a sample output to infer a schema from) or --schema-preset (default: base).

Examples:
  pdfvision extract report.pdf
  pdfvision extract report.pdf --start-page 3 --end-page 9 --save
  pdfvision extract invoice.pdf --schema-preset financial -o json
  pdfvision extract paper.pdf --schema ./schema.json --out paper.json --save
  pdfvision extract deck.pdf --fields '{"speaker_notes": {"type": "string"}}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		s, err := resolveSchema(extractSchema, extractExample, extractPreset, extractFields)
		if err != nil {
			return err
		}

		recorder, err := newRecorder(extractCallLog)
		if err != nil {
			return err
		}
		defer recorder.Close()

		apiKey := extractAPIKey
		if apiKey == "" {
			apiKey = cfg.ResolveAPIKey()
		}
		pipeline, err := newPipeline(cfg, apiKey, recorder)
		if err != nil {
			return err
		}

		var progress extract.ProgressFunc
		if !extractQuiet {
			progress = func(msg string, _, _ int) {
				fmt.Fprintln(os.Stderr, msg)
			}
		}

		result, meta, err := pipeline.Extract(ctx, extract.Request{
			Path:       args[0],
			Schema:     s,
			StartPage:  extractStartPage,
			EndPage:    extractEndPage,
			Progress:   progress,
			Save:       extractSave,
			OutputPath: extractOut,
		})
		if err != nil {
			if errors.Is(err, extract.ErrMissingAPIKey) {
				return fmt.Errorf("%w (or pass --api-key)", err)
			}
			return err
		}

		summary := recorder.Summary()
		logger.Debug("model calls",
			"attempts", summary.Attempts,
			"failures", summary.Failures,
			"input_tokens", summary.InputTokens,
			"output_tokens", summary.OutputTokens)

		if extractQuiet && extractSave {
			return nil
		}
		return printer.Print(extract.Artifact{ProcessingMetadata: meta, ExtractionResults: result})
	},
}

// resolveSchema picks the schema source by precedence: explicit schema,
// example output, then preset. Extra fields are merged last.
func resolveSchema(schemaArg, exampleArg, preset, fields string) (*schema.Schema, error) {
	var (
		s   *schema.Schema
		err error
	)
	switch {
	case schemaArg != "":
		s, err = schema.Load(schemaArg)
	case exampleArg != "":
		var raw []byte
		raw, err = readJSONArg(exampleArg)
		if err == nil {
			s, err = schema.FromExample(raw)
		}
	default:
		s, err = schema.Preset(preset)
	}
	if err != nil {
		return nil, err
	}

	if fields != "" {
		raw, err := readJSONArg(fields)
		if err != nil {
			return nil, err
		}
		if s, err = s.WithFields(raw); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// readJSONArg accepts inline JSON or a path to a JSON file.
func readJSONArg(arg string) (json.RawMessage, error) {
	if json.Valid([]byte(arg)) {
		return json.RawMessage(arg), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", arg, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", arg)
	}
	return data, nil
}

// newRecorder returns an in-memory recorder, or a JSONL-backed one when a
// call log path is given.
func newRecorder(path string) (*llmcall.Recorder, error) {
	switch path {
	case "":
		return llmcall.NewRecorder(logger), nil
	case callLogDefault:
		h, err := getHome()
		if err != nil {
			return nil, err
		}
		path = h.CallLogPath()
	}
	return llmcall.NewFileRecorder(path, logger)
}

// newPipeline wires configuration into an extraction pipeline.
func newPipeline(cfg *config.Config, apiKey string, recorder *llmcall.Recorder) (*extract.Pipeline, error) {
	settings, err := cfg.ToExtractSettings()
	if err != nil {
		return nil, err
	}
	providerCfg := cfg.ToProviderConfig()

	return extract.NewPipeline(extract.PipelineConfig{
		Settings: settings,
		APIKey:   apiKey,
		NewClient: func(key string) (providers.VisionClient, error) {
			pc := providerCfg
			pc.APIKey = key
			return providers.New(pc)
		},
		Rasterizer: pdf.NewPdftoppmRenderer(pdf.PdftoppmConfig{
			Binary: cfg.Renderer.Pdftoppm,
			Logger: logger,
		}),
		Logger:   logger,
		Recorder: recorder,
	}), nil
}

func init() {
	f := extractCmd.Flags()
	f.IntVar(&extractStartPage, "start-page", 1, "first page to process (1-based)")
	f.IntVar(&extractEndPage, "end-page", 0, "last page to process (default: last page)")
	f.StringVar(&extractSchema, "schema", "", "JSON schema file or inline JSON")
	f.StringVar(&extractPreset, "schema-preset", schema.DefaultPreset, "built-in schema preset")
	f.StringVar(&extractExample, "schema-example", "", "example output (file or inline JSON) to infer a schema from")
	f.StringVar(&extractFields, "fields", "", "extra schema properties to merge (file or inline JSON)")
	f.BoolVar(&extractSave, "save", false, "write the results artifact to disk")
	f.StringVar(&extractOut, "out", "", "artifact path (default: <name>_extraction_results.json)")
	f.StringVar(&extractAPIKey, "api-key", "", "API key (default: provider.api_key or GROQ_API_KEY)")
	f.BoolVarP(&extractQuiet, "quiet", "q", false, "suppress progress; with --save, also suppress the result")
	f.StringVar(&extractCallLog, "call-log", "", "append every model attempt to a JSONL file (bare flag: ~/.pdfvision/logs/calls.jsonl)")
	f.Lookup("call-log").NoOptDefVal = callLogDefault

	extractCmd.MarkFlagsMutuallyExclusive("schema", "schema-example")

	rootCmd.AddCommand(extractCmd)
}
