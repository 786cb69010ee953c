package export

import (
	"fmt"
	"strings"
	"time"
)

// TextFilename returns the dated download name for a plain-text export.
func TextFilename(t time.Time) string {
	return fmt.Sprintf("transcricao-%s.txt", t.Format("2006-01-02"))
}

// Text renders the document for a plain-text download. The content is
// written verbatim with normalized edges and a trailing newline.
func Text(document string) []byte {
	trimmed := strings.TrimSpace(document)
	if trimmed == "" {
		return []byte{}
	}
	return []byte(trimmed + "\n")
}
