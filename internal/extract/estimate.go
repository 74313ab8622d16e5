package extract

import "fmt"

// Cost model constants, averaged from observed runs.
const (
	TokensPerPage = 3200
	CostPerToken  = 0.00002 // USD
)

// Estimate is a rough time and cost forecast for a run.
type Estimate struct {
	TotalPages        int     `json:"total_pages_in_pdf"`
	PagesToProcess    int     `json:"pages_to_process"`
	EstimatedSeconds  float64 `json:"estimated_time_seconds"`
	EstimatedDuration string  `json:"estimated_time_formatted"`
	EstimatedTokens   int     `json:"estimated_tokens"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
	CostPerPage       float64 `json:"cost_per_page"`
	Description       string  `json:"processing_description"`
	BatchSize         int     `json:"batch_size"`
	DPI               int     `json:"dpi"`
	EstimatedBatches  int     `json:"estimated_batches"`
}

// EstimateRun forecasts processing pages [start, end] of a totalPages
// document. Batching follows tiers; time per page depends on how many
// pages are processed.
func EstimateRun(tiers Tiers, totalPages, start, end int) Estimate {
	pages := end - start + 1
	if pages < 0 {
		pages = 0
	}

	var perPage float64
	var desc string
	switch {
	case pages <= 10:
		perPage, desc = 3, "Small PDF - High quality processing"
	case pages <= 50:
		perPage, desc = 2.5, "Medium PDF - Balanced processing"
	case pages <= 200:
		perPage, desc = 2, "Large PDF - Efficient processing"
	default:
		perPage, desc = 1.5, "Enterprise PDF - Memory optimized processing"
	}

	tier := tiers.Configure(totalPages)
	seconds := float64(pages) * perPage
	tokens := pages * TokensPerPage
	cost := float64(tokens) * CostPerToken

	est := Estimate{
		TotalPages:        totalPages,
		PagesToProcess:    pages,
		EstimatedSeconds:  seconds,
		EstimatedDuration: FormatDuration(seconds),
		EstimatedTokens:   tokens,
		EstimatedCostUSD:  cost,
		Description:       desc,
		BatchSize:         tier.BatchSize,
		DPI:               tier.DPI,
	}
	if pages > 0 {
		est.CostPerPage = cost / float64(pages)
		if tier.BatchSize > 0 {
			est.EstimatedBatches = (pages + tier.BatchSize - 1) / tier.BatchSize
		}
	}
	return est
}

// FormatDuration renders seconds as seconds, minutes or hours.
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.1f hours", seconds/3600)
	}
}
