package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dyike/StockBot/internal/service"
)

// InteractiveSession is the REPL. All commands typed in one session share a
// conversation until 'new' starts another.
type InteractiveSession struct {
	bot            *service.Bot
	prompt         func() (string, error)
	out            io.Writer
	conversationID string
}

func NewInteractiveSession(bot *service.Bot, prompt func() (string, error), out io.Writer) *InteractiveSession {
	return &InteractiveSession{
		bot:    bot,
		prompt: prompt,
		out:    out,
	}
}

// Start shows the banner and runs until exit, Ctrl-C or end of input.
func (s *InteractiveSession) Start(ctx context.Context) error {
	DisplayWelcomeBanner(s.out)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		input, err := s.prompt()
		if errors.Is(err, errQuit) {
			fmt.Fprintln(s.out, "Bye.")
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "q":
			fmt.Fprintln(s.out, "Bye.")
			return nil
		case "help", "h", "?":
			s.showHelp()
		case "keywords", "kw":
			fmt.Fprint(s.out, RenderCatalog(s.bot.Catalog()))
		case "new":
			s.conversationID = ""
			DisplayInfo(s.out, "Started a new conversation.")
		case "clear", "cls":
			ClearScreen(s.out)
			DisplayWelcomeBanner(s.out)
		default:
			s.ask(ctx, input)
		}
	}
}

func (s *InteractiveSession) ask(ctx context.Context, input string) {
	reply := s.bot.Handle(ctx, service.Query{ConversationID: s.conversationID, Text: input})
	if reply.ConversationID != "" {
		s.conversationID = reply.ConversationID
	}
	fmt.Fprint(s.out, RenderReply(reply))
}

func (s *InteractiveSession) showHelp() {
	fmt.Fprintln(s.out, titleStyle.Render("Commands"))
	fmt.Fprintln(s.out, "  <keywords>:<tickers>   query stock data, e.g. overview:AAPL or price,yesterday:TSLA,V")
	fmt.Fprintln(s.out, "  keywords               list the accepted keywords")
	fmt.Fprintln(s.out, "  new                    start a new conversation")
	fmt.Fprintln(s.out, "  clear                  clear the screen")
	fmt.Fprintln(s.out, "  help                   show this help")
	fmt.Fprintln(s.out, "  exit                   leave StockBot")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, mutedStyle.Render("Fixed keywords may be combined; a modifiable keyword takes exactly one time or range selector."))
}
