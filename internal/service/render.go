package service

import (
	"strings"

	"github.com/dyike/StockBot/internal/models"
)

// RenderContent joins a formatted result into the plain-text reply body: the
// label, one line per entry, then a blank separator.
func RenderContent(result models.FormattedResult) string {
	var b strings.Builder
	for _, tr := range result {
		b.WriteString(tr.Label)
		b.WriteByte('\n')
		for _, line := range tr.Lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("\n\n")
	}
	return b.String()
}
