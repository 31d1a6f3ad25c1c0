package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dyike/StockBot/internal/service"
)

const defaultBatchConcurrency = 3

// BatchManager answers a list of commands with bounded concurrency.
type BatchManager struct {
	bot        *service.Bot
	concurrent int
}

// BatchResult is the outcome of one command of a batch.
type BatchResult struct {
	Command  string
	Reply    *service.Reply
	Duration time.Duration
}

func NewBatchManager(bot *service.Bot, concurrent int) *BatchManager {
	// Validate concurrent limit
	if concurrent <= 0 || concurrent > 10 {
		concurrent = defaultBatchConcurrency
	}
	return &BatchManager{bot: bot, concurrent: concurrent}
}

// Run answers every command and returns the results in input order. Each
// command starts its own conversation.
func (bm *BatchManager) Run(ctx context.Context, commands []string) []BatchResult {
	results := make([]BatchResult, len(commands))
	semaphore := make(chan struct{}, bm.concurrent)

	var wg sync.WaitGroup
	for i, command := range commands {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			start := time.Now()
			reply := bm.bot.Handle(ctx, service.Query{Text: command})
			results[i] = BatchResult{Command: command, Reply: reply, Duration: time.Since(start)}
		}()
	}
	wg.Wait()
	return results
}

// LoadCommandsFromFile reads one command per line. Empty lines and lines
// starting with # are skipped.
func LoadCommandsFromFile(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read commands file: %w", err)
	}

	var commands []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			commands = append(commands, line)
		}
	}

	if len(commands) == 0 {
		return nil, fmt.Errorf("no commands found in file: %s", filename)
	}
	return commands, nil
}

// DisplayBatchSummary prints every reply followed by a status table.
func DisplayBatchSummary(w io.Writer, results []BatchResult) {
	failed := 0
	for _, r := range results {
		fmt.Fprintln(w, titleStyle.Render("> "+r.Command))
		fmt.Fprint(w, RenderReply(r.Reply))
		if !r.Reply.Success {
			failed++
		}
	}

	fmt.Fprintf(w, "%-40s %-10s %-10s %s\n", "COMMAND", "STATUS", "DURATION", "ERROR")
	fmt.Fprintln(w, strings.Repeat("─", 80))
	for _, r := range results {
		status := "ok"
		if !r.Reply.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "%-40s %-10s %-10s %s\n",
			truncateString(r.Command, 40), status, r.Duration.Round(time.Millisecond), r.Reply.ErrorKind)
	}
	fmt.Fprintln(w)

	if failed > 0 {
		DisplayError(w, fmt.Errorf("%d of %d commands failed", failed, len(results)))
		return
	}
	DisplaySuccess(w, fmt.Sprintf("All %d commands answered.", len(results)))
}

// truncateString shortens s to maxLen runes, ending in "...".
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
