package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"lumen/internal/workspace"
)

// ProviderStats aggregates attempt outcomes for one provider.
type ProviderStats struct {
	Attempts  int
	Succeeded int
	Failed    int
	EmptyText int
	TokensIn  int
	TokensOut int
}

// Summary is a read-only view of a document. Empty-text completions are a
// separate count from errors: the model answered, it just had nothing to say.
type Summary struct {
	TotalItems           int
	ByStatus             map[workspace.Status]int
	ByKind               map[workspace.Kind]int
	TotalAttempts        int
	EmptyTextCompletions int
	ByProvider           map[string]ProviderStats
}

// Summarize computes a summary. It tolerates items with zero descriptions
// and items with many.
func Summarize(doc *workspace.Document) Summary {
	summary := Summary{
		ByStatus:   make(map[workspace.Status]int),
		ByKind:     make(map[workspace.Kind]int),
		ByProvider: make(map[string]ProviderStats),
	}
	if doc == nil {
		return summary
	}

	for _, item := range doc.Items() {
		summary.TotalItems++
		summary.ByStatus[item.Status]++
		summary.ByKind[item.Kind]++

		for _, rec := range item.Descriptions {
			summary.TotalAttempts++
			stats := summary.ByProvider[rec.Provider]
			stats.Attempts++
			stats.TokensIn += rec.TokensIn
			stats.TokensOut += rec.TokensOut
			if rec.Succeeded() {
				stats.Succeeded++
				if rec.EmptyText() {
					stats.EmptyText++
					summary.EmptyTextCompletions++
				}
			} else {
				stats.Failed++
			}
			summary.ByProvider[rec.Provider] = stats
		}
	}
	return summary
}

// Providers returns the provider names in the summary, sorted.
func (s Summary) Providers() []string {
	names := make([]string, 0, len(s.ByProvider))
	for name := range s.ByProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var csvHeader = []string{
	"item_id", "source_path", "kind", "status", "derived_from", "item_error",
	"captured_at", "camera_make", "camera_model", "latitude", "longitude", "place",
	"provider", "model", "prompt_style", "text", "record_error",
	"finish_reason", "tokens_in", "tokens_out", "processing_time_ms", "created_at",
}

// WriteCSV exports the document, one row per description record. Items with
// no descriptions still get a row so the export covers the whole document.
func WriteCSV(doc *workspace.Document, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, item := range doc.Items() {
		base := []string{
			item.ID, item.SourcePath, string(item.Kind), string(item.Status),
			item.DerivedFrom, item.Error,
			formatTimePtr(item.CapturedAt), item.CameraMake, item.CameraModel,
			formatFloatPtr(item.Latitude), formatFloatPtr(item.Longitude), item.Place,
		}
		if len(item.Descriptions) == 0 {
			row := append(append([]string{}, base...), make([]string, len(csvHeader)-len(base))...)
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
			continue
		}
		for _, rec := range item.Descriptions {
			row := append(append([]string{}, base...),
				rec.Provider, rec.Model, rec.PromptStyle, rec.Text, rec.Error,
				rec.FinishReason,
				strconv.Itoa(rec.TokensIn), strconv.Itoa(rec.TokensOut),
				strconv.FormatInt(rec.ProcessingTimeMS, 10),
				rec.CreatedAt.UTC().Format(time.RFC3339),
			)
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 6, 64)
}
