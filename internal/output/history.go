package output

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lensgate/lensgate/internal/store"
)

// FormatHistory renders audit trail outcome records.
func FormatHistory(format Format, records []store.OutcomeRecord) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(historyViews(records), "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Request", "Served By", "Model", "Attempts", "Rotations", "Duration", "Error"})

	for _, rec := range records {
		errorKind := "-"
		if rec.ErrorKind != "" {
			errorKind = rec.ErrorKind
		}
		t.AppendRow(table.Row{
			rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			rec.RequestID,
			rec.ServedBy,
			rec.Model,
			rec.Attempts,
			rec.Rotations,
			rec.Duration.String(),
			errorKind,
		})
	}

	return t.Render(), nil
}

// FormatExhaustions renders persisted credential exhaustion marks.
func FormatExhaustions(format Format, records []store.ExhaustionRecord) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(exhaustionViews(records), "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Exhausted At", "Credential"})

	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.ExhaustedAt.UTC().Format("2006-01-02 15:04:05"),
			rec.CredentialIndex,
		})
	}

	return t.Render(), nil
}

type exhaustionView struct {
	CredentialIndex int    `json:"credential_index"`
	ExhaustedAt     string `json:"exhausted_at"`
}

func exhaustionViews(records []store.ExhaustionRecord) []exhaustionView {
	views := make([]exhaustionView, 0, len(records))
	for _, rec := range records {
		views = append(views, exhaustionView{
			CredentialIndex: rec.CredentialIndex,
			ExhaustedAt:     rec.ExhaustedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return views
}

type historyView struct {
	RequestID string `json:"request_id"`
	ServedBy  string `json:"served_by"`
	Source    string `json:"source"`
	Model     string `json:"model"`
	Attempts  int    `json:"attempts"`
	Rotations int    `json:"rotations"`
	DurationM int64  `json:"duration_ms"`
	ErrorKind string `json:"error_kind,omitempty"`
	CreatedAt string `json:"created_at"`
}

func historyViews(records []store.OutcomeRecord) []historyView {
	views := make([]historyView, 0, len(records))
	for _, rec := range records {
		views = append(views, historyView{
			RequestID: rec.RequestID,
			ServedBy:  rec.ServedBy,
			Source:    rec.Source,
			Model:     rec.Model,
			Attempts:  rec.Attempts,
			Rotations: rec.Rotations,
			DurationM: rec.Duration.Milliseconds(),
			ErrorKind: rec.ErrorKind,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return views
}
