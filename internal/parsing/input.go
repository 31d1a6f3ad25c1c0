// Package parsing turns a user command into a query plan.
package parsing

import (
	"strings"
	"unicode"

	"github.com/dyike/StockBot/internal/models"
)

const (
	partSeparator  = ":"
	tokenSeparator = ","
)

// Parse splits a command of the form "keywords : tickers" into its keyword and
// ticker lists. All whitespace is removed first, so tokens and separators may
// be spaced freely. Tokens keep their order, case and duplicates; legality of
// keywords is checked by the Planner.
func Parse(text string) (*models.ParsedInput, error) {
	compact := stripWhitespace(text)

	parts := strings.Split(compact, partSeparator)
	if len(parts) != 2 {
		return nil, models.NewCommandError(models.KindMalformedInput,
			"expected exactly one %q separator, found %d", partSeparator, len(parts)-1)
	}

	return &models.ParsedInput{
		Keywords: strings.Split(parts[0], tokenSeparator),
		Tickers:  strings.Split(parts[1], tokenSeparator),
	}, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
