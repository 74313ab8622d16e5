package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackzampolin/pdfvision/internal/schema"
)

const extractionInstructions = `CRITICAL INSTRUCTIONS:
1. DO NOT use placeholder or example data like "example_table_title", "example1", "example2"
2. Extract REAL data from the PDF pages
3. If a table exists but data cannot be extracted, use empty arrays [] for headers and rows
4. If no table exists, set contains_tables to false and tables_data to empty array

COMPREHENSIVE EXTRACTION INSTRUCTIONS:
1. TEXT CONTENT: Extract all actual text content according to the schema fields.

2. TABLE EXTRACTION: For each table found:
   - Extract the ACTUAL table title/caption (not "example_table_title")
   - Extract the REAL column headers from the table
   - Extract the ACTUAL row data from each row
   - If extraction fails, use empty arrays instead of placeholder text
   - Set contains_tables to true only if tables are actually found

3. VISUAL ELEMENTS: If the schema includes image-related fields, carefully analyze all visual elements including:
   - Charts and graphs (bar, line, pie, scatter, etc.)
   - Diagrams and flowcharts
   - Images and photographs
   - Logos and branding elements
   - Illustrations and drawings
   - Maps and technical drawings
   - Screenshots or interface elements

4. SCHEMA COMPLIANCE: Follow the exact field names and types specified in the schema.

5. DATA QUALITY:
   - Use REAL data from the PDF, never placeholder text
   - If data cannot be extracted, use appropriate empty values (empty strings, empty arrays, false)
   - Ensure table headers and rows contain actual data or remain empty

Return ONLY the JSON object with the "pages" array containing one object per page that matches the schema structure.`

// BuildPrompt renders the text block sent ahead of a batch's images. The
// schema's example record shows the model the exact shape to return.
func BuildPrompt(s *schema.Schema, pages []int) string {
	var b strings.Builder
	b.WriteString(`Extract data from these PDF pages and return as a valid JSON object with a "pages" array.`)
	b.WriteString("\n\nIMPORTANT: Return EXACTLY this structure based on the provided schema:\n")
	b.WriteString(exampleEnvelope(s))
	b.WriteString("\n\nProcess these pages: ")
	b.WriteString(formatPages(pages))
	b.WriteString("\n\n")
	b.WriteString(extractionInstructions)
	return b.String()
}

// exampleEnvelope wraps the schema example as {"pages": [example]},
// indented, with field order preserved.
func exampleEnvelope(s *schema.Schema) string {
	raw := []byte(`{"pages":[` + string(s.Example()) + `]}`)
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// progressMessage describes a batch for progress callbacks.
func progressMessage(batch, total int, pages []int) string {
	if len(pages) == 0 {
		return fmt.Sprintf("Processing batch %d/%d", batch, total)
	}
	return fmt.Sprintf("Processing batch %d/%d: pages %d-%d", batch, total, pages[0], pages[len(pages)-1])
}
