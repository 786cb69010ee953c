package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/laudoscribe/laudoscribe/internal/reconcile"
)

// Metadata describes the session being rendered.
type Metadata struct {
	Title     string
	Model     string
	Generated time.Time
}

// Markdown renders the document plus its turn log as a Markdown report.
func Markdown(meta Metadata, document string, turns []reconcile.Turn) string {
	var b strings.Builder

	if meta.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	} else {
		b.WriteString("# Transcrição\n\n")
	}
	if meta.Model != "" {
		fmt.Fprintf(&b, "- Modelo: `%s`\n", meta.Model)
	}
	if !meta.Generated.IsZero() {
		fmt.Fprintf(&b, "- Gerado em: %s\n", meta.Generated.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "- Turnos: %d\n", len(turns))
	b.WriteString("\n---\n\n")

	if document := strings.TrimSpace(document); document != "" {
		b.WriteString(document)
		b.WriteString("\n")
	}

	if len(turns) == 0 {
		return b.String()
	}

	b.WriteString("\n## Turnos\n\n")
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}

		marks := ""
		if turn.Failed {
			marks += " ⚠"
		}
		if turn.Edited {
			marks += " ✎"
		}
		fmt.Fprintf(&b, "%d. [%s]%s %s\n", turn.ID, turn.Timestamp.Format("15:04:05"), marks, text)
	}

	return b.String()
}
