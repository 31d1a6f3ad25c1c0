package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/StockBot/internal/keywords"
	"github.com/dyike/StockBot/internal/service"
	"github.com/dyike/StockBot/internal/storage"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	sectionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))
)

// DisplayWelcomeBanner shows the REPL greeting.
func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render("StockBot"))
	fmt.Fprintln(w, mutedStyle.Render("Ask for stock data with keywords:tickers, for example  eps,peratio:AAPL,MSFT"))
	fmt.Fprintln(w, mutedStyle.Render("Type 'help' for the command reference or 'exit' to quit."))
	fmt.Fprintln(w)
}

// RenderReply styles a bot reply. The plain text is reply.Content; this adds
// emphasis to the ticker labels.
func RenderReply(reply *service.Reply) string {
	if !reply.Success {
		return errorStyle.Render(reply.Content) + "\n"
	}
	var b strings.Builder
	for _, tr := range reply.Results {
		b.WriteString(labelStyle.Render(tr.Label))
		if tr.Change != "" {
			b.WriteString("  " + renderChange(tr.Change))
		}
		b.WriteByte('\n')
		for _, line := range tr.Lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderChange shows a signed move, red when it is a loss.
func renderChange(change string) string {
	if strings.HasPrefix(change, "-") {
		return lossStyle.Render(change)
	}
	if change == "0" {
		return mutedStyle.Render(change)
	}
	return successStyle.Render("+" + change)
}

// RenderCatalog lists every keyword group in catalog order.
func RenderCatalog(c *keywords.Catalog) string {
	groups := []struct {
		title string
		words []string
	}{
		{"Fixed keywords (" + keywords.OverviewKeyword + " selects all)", c.Keywords},
		{"Modifiable keywords", c.ModifiableKeywords},
		{"Time selectors", c.TimeSelector},
		{"Range selectors", c.RangeSelector},
	}

	sections := make([]string, 0, len(groups))
	for _, g := range groups {
		var b strings.Builder
		b.WriteString(labelStyle.Render(g.title))
		for _, w := range g.words {
			b.WriteString("\n  " + w)
		}
		sections = append(sections, sectionStyle.Render(b.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func RenderConversations(convs []storage.Conversation) string {
	if len(convs) == 0 {
		return mutedStyle.Render("No conversations recorded yet.") + "\n"
	}
	var b strings.Builder
	for _, c := range convs {
		fmt.Fprintf(&b, "%s  %s  %s\n",
			labelStyle.Render(c.ID),
			mutedStyle.Render(c.UpdatedAt.Local().Format("2006-01-02 15:04:05")),
			fmt.Sprintf("%d messages", c.MessageCount))
	}
	return b.String()
}

func RenderMessages(msgs []storage.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		stamp := mutedStyle.Render("[" + m.CreatedAt.Local().Format("15:04:05") + "]")
		switch {
		case m.IsUser:
			fmt.Fprintf(&b, "%s %s %s\n", stamp, userStyle.Render("you:"), m.Content)
		case !m.Success:
			fmt.Fprintf(&b, "%s %s\n", stamp, errorStyle.Render(m.Content))
		default:
			fmt.Fprintf(&b, "%s\n%s\n", stamp, strings.TrimRight(m.Content, "\n"))
		}
	}
	return b.String()
}

// ClearScreen clears the terminal screen
func ClearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}

// DisplayError shows an error message
func DisplayError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}

// DisplayInfo shows an info message
func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, infoStyle.Render(message))
}

// DisplaySuccess shows a success message
func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, successStyle.Render(message))
}
