package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/pdfvision/internal/extract"
	"github.com/jackzampolin/pdfvision/internal/pdf"
)

var (
	infoStartPage int
	infoEndPage   int
)

// infoOutput is the info command's result.
type infoOutput struct {
	File     *pdf.Info        `json:"file"`
	Estimate extract.Estimate `json:"estimate"`
}

var infoCmd = &cobra.Command{
	Use:   "info <pdf>",
	Short: "Show PDF details and a processing estimate",
	Long: `Show page count, size and encryption of a PDF, with the batch
configuration the extractor would choose and a rough time and cost
estimate. No model calls are made.

Examples:
  pdfvision info report.pdf
  pdfvision info report.pdf --start-page 10 --end-page 40 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		tiers, err := extract.TierProfile(mgr.Get().Extraction.TierProfile)
		if err != nil {
			return err
		}

		info, err := pdf.Inspect(args[0])
		if err != nil {
			return err
		}
		start, end, err := pdf.ClampRange(infoStartPage, infoEndPage, info.PageCount)
		if err != nil {
			return err
		}

		return printer.Print(infoOutput{
			File:     info,
			Estimate: extract.EstimateRun(tiers, info.PageCount, start, end),
		})
	},
}

func init() {
	infoCmd.Flags().IntVar(&infoStartPage, "start-page", 1, "first page to estimate")
	infoCmd.Flags().IntVar(&infoEndPage, "end-page", 0, "last page to estimate (default: last page)")

	rootCmd.AddCommand(infoCmd)
}
