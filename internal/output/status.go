package output

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lensgate/lensgate/internal/dispatch"
)

// FormatStatus renders a dispatch status snapshot.
func FormatStatus(format Format, status dispatch.Status) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Credential", "Secret", "Current", "Available", "Last Exhausted"})

	for _, cred := range status.Credentials {
		lastExhausted := "-"
		if cred.LastExhaustedAt != nil {
			lastExhausted = cred.LastExhaustedAt.UTC().Format("2006-01-02 15:04:05")
		}
		t.AppendRow(table.Row{
			cred.Index,
			cred.SecretSuffix,
			yesNo(cred.Current),
			yesNo(cred.Available),
			lastExhausted,
		})
	}

	rendered := t.Render()
	rendered += fmt.Sprintf("\nMode: %s   Real available: %s   Fallback allowed: %s\n",
		status.Mode, yesNo(status.RealAvailable), yesNo(status.AllowFallback))
	rendered += fmt.Sprintf("Rate gate: %d/%d this minute, %d/%d this hour\n",
		status.Gate.MinuteCount, status.Gate.PerMinute,
		status.Gate.HourCount, status.Gate.PerHour)

	return rendered, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
