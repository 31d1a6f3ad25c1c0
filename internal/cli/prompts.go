package cli

import (
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/StockBot/internal/keywords"
)

// errQuit ends the REPL. Ctrl-C and end of input map to it.
var errQuit = errors.New("quit")

// PromptForCommand reads one command line with tab completion of keywords.
func PromptForCommand(catalog *keywords.Catalog) (string, error) {
	var line string
	prompt := &survey.Input{
		Message: "stockbot>",
		Help:    "keyword[,keyword...]:TICKER[,TICKER...]  e.g. price,lastweek:TSLA",
		Suggest: func(toComplete string) []string {
			return suggestKeywords(catalog, toComplete)
		},
	}

	err := survey.AskOne(prompt, &line)
	if errors.Is(err, terminal.InterruptErr) || errors.Is(err, io.EOF) {
		return "", errQuit
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

// PromptForConfirmation asks a yes/no question, defaulting to no.
func PromptForConfirmation(message string) (bool, error) {
	var confirmed bool
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// suggestKeywords completes the keyword being typed. Nothing is suggested
// once the ticker part has started.
func suggestKeywords(catalog *keywords.Catalog, toComplete string) []string {
	if strings.Contains(toComplete, ":") {
		return nil
	}
	head, partial := "", toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		head, partial = toComplete[:i+1], toComplete[i+1:]
	}
	partial = strings.TrimSpace(partial)

	candidates := slices.Concat(
		[]string{keywords.OverviewKeyword},
		catalog.Keywords,
		catalog.ModifiableKeywords,
		catalog.TimeSelector,
		catalog.RangeSelector,
	)
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, partial) {
			out = append(out, head+c)
		}
	}
	return out
}
