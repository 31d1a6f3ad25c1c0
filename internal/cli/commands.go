package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/StockBot/config"
	"github.com/dyike/StockBot/internal/server"
	"github.com/dyike/StockBot/internal/service"
	"github.com/dyike/StockBot/internal/storage"
)

// Version is set at build time with -ldflags.
var Version = "dev"

const recorderQueueSize = 64

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "stockbot",
		Short: "StockBot - stock data from keyword commands",
		Long: `StockBot answers commands of the form keywords:tickers with company
overviews, current quotes and recent price history from Alpha Vantage.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			return runInteractiveMode(cmd, opts)
		},
	}

	rootCmd.AddCommand(newAskCmd(opts))
	rootCmd.AddCommand(newBatchCmd(opts))
	rootCmd.AddCommand(newKeywordsCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the conversation")

	return rootCmd
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask COMMAND",
		Short: "Answer one command and exit",
		Long: `Answer one command and exit. Words are joined with spaces, which the
parser ignores, so quoting is optional.
Example: stockbot ask "price, lastweek: TSLA, V"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.OutOrStdout(), opts, true, true)
			if err != nil {
				return err
			}
			defer a.Close()

			bot := a.newBot(&a.cfg, a.recorder(), nil, nil)
			reply := bot.Handle(cmd.Context(), service.Query{
				ConversationID: conversationID,
				Text:           strings.Join(args, " "),
			})

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(reply)
			}
			fmt.Fprint(a.out, RenderReply(reply))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the reply as JSON")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Append to an existing conversation")
	return cmd
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var concurrent int

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Answer every command listed in a file",
		Long: `Answer every command listed in FILE, one per line. Empty lines and lines
starting with # are skipped. Replies are printed in file order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commands, err := LoadCommandsFromFile(args[0])
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.OutOrStdout(), opts, true, true)
			if err != nil {
				return err
			}
			defer a.Close()

			bot := a.newBot(&a.cfg, a.recorder(), nil, nil)
			results := NewBatchManager(bot, concurrent).Run(cmd.Context(), commands)
			DisplayBatchSummary(a.out, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrent, "concurrent", "c", defaultBatchConcurrency, "Commands answered at once (1-10)")
	return cmd
}

func newKeywordsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the accepted keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.OutOrStdout(), opts, false, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(a.catalog)
			}
			fmt.Fprint(a.out, RenderCatalog(a.catalog))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var limit int
	var cursor int64

	cmd := &cobra.Command{
		Use:   "history [CONVERSATION_ID]",
		Short: "List recorded conversations or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openHistory(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				msgs, err := a.store.ListMessages(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(a.out, RenderMessages(msgs))
				return nil
			}

			convs, err := a.store.ListConversations(cmd.Context(), cursor, limit)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, RenderConversations(convs))
			if n := len(convs); n > 0 && n == limit {
				fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("More: stockbot history --cursor %d --limit %d", convs[n-1].RowID, limit)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Conversations per page")
	cmd.Flags().Int64Var(&cursor, "cursor", 0, "Continue after this cursor")
	cmd.AddCommand(newHistoryDeleteCmd(opts))
	return cmd
}

func newHistoryDeleteCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete CONVERSATION_ID",
		Short: "Delete a recorded conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openHistory(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if !yes {
				ok, err := PromptForConfirmation(fmt.Sprintf("Delete conversation %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			if err := a.store.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			DisplaySuccess(a.out, "Conversation deleted.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func openHistory(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	a, err := bootstrap(cmd.OutOrStdout(), opts, false, true)
	if err != nil {
		return nil, err
	}
	if a.store == nil {
		a.Close()
		return nil, errors.New("history recording is disabled")
	}
	return a, nil
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bot over HTTP",
		Long: `Serve the bot over HTTP. Changes to the config file are picked up
without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.OutOrStdout(), opts, true, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.ListenAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, a, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to listen_addr)")
	return cmd
}

func runServer(ctx context.Context, a *app, addr string) error {
	metrics := server.NewMetrics()

	var recorder service.Recorder
	if a.store != nil {
		async := storage.NewRecorder(a.store, recorderQueueSize, a.logger.Named("recorder"))
		defer async.Close()
		recorder = async
	}
	build := func(cfg config.Config) *service.Bot {
		return a.newBot(&cfg, recorder, metrics.ObserveGatewayCall, metrics.ObserveQuery)
	}

	srv := server.New(addr, build(a.cfg),
		server.WithStore(a.store),
		server.WithMetrics(metrics),
		server.WithLogger(a.logger.Named("http")))

	err := a.mgr.Watch(ctx, func(cfg config.Config) {
		srv.SetBot(build(cfg))
	})
	if err != nil {
		a.logger.Warn("config watch unavailable", zap.Error(err))
	}

	return srv.Run(ctx)
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "StockBot %s\n", Version)
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(opts *globalOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Inspect and manage the StockBot configuration file",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(opts)
			if err != nil {
				return err
			}
			cfg := mgr.Effective()
			showConfig(cmd, mgr.Path(), &cfg)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mgr.Path())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd, opts)
		},
	})

	var yes bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(opts)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := PromptForConfirmation("Overwrite " + mgr.Path() + " with defaults?")
				if err != nil || !ok {
					return err
				}
			}
			defaults := config.DefaultConfigWithRoot(filepath.Dir(mgr.Path()))
			if err := mgr.Update(*defaults); err != nil {
				return err
			}
			DisplaySuccess(cmd.OutOrStdout(), "Configuration reset.")
			return nil
		},
	}
	resetCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	configCmd.AddCommand(resetCmd)

	return configCmd
}

// showConfig displays the current configuration
func showConfig(cmd *cobra.Command, path string, cfg *config.Config) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, titleStyle.Render("StockBot Configuration"))
	fmt.Fprintf(w, "Config File:          %s\n", path)
	fmt.Fprintf(w, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "History Database:     %s\n", cfg.DBPath)
	fmt.Fprintf(w, "Record History:       %t\n", cfg.RecordHistory)
	keywordsFile := cfg.KeywordsFile
	if keywordsFile == "" {
		keywordsFile = "(built in)"
	}
	fmt.Fprintf(w, "Keywords File:        %s\n", keywordsFile)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "API Base URL:         %s\n", cfg.APIBaseURL)
	fmt.Fprintf(w, "Request Timeout:      %s\n", cfg.RequestTimeout())
	fmt.Fprintf(w, "Max Retries:          %d\n", cfg.MaxRetries)
	fmt.Fprintf(w, "Retry Base Delay:     %s\n", cfg.RetryBaseDelay())
	fmt.Fprintf(w, "Max Concurrent Calls: %d\n", cfg.MaxConcurrentCalls)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Listen Address:       %s\n", cfg.ListenAddr)
	fmt.Fprintf(w, "Log Level:            %s\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "Log File:             %s\n", cfg.LogFile)
	}
	fmt.Fprintf(w, "Debug Mode:           %t\n", cfg.Debug)
	fmt.Fprintln(w)

	if cfg.APIKey != "" {
		fmt.Fprintln(w, "Alpha Vantage API:    configured")
	} else {
		fmt.Fprintln(w, "Alpha Vantage API:    not configured")
	}
}

// validateConfig validates the configuration and dependencies
func validateConfig(cmd *cobra.Command, opts *globalOptions) error {
	w := cmd.OutOrStdout()
	mgr, err := newManager(opts)
	if err != nil {
		return err
	}
	cfg, err := mgr.Runtime()
	if err != nil {
		return err
	}
	DisplaySuccess(w, "Configuration values are valid.")

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("directory validation failed: %w", err)
	}
	DisplaySuccess(w, "Data directory is writable.")

	catalog, err := loadCatalog(&cfg)
	if err != nil {
		return err
	}
	DisplaySuccess(w, fmt.Sprintf("Keyword catalog loaded (%d fixed keywords).", len(catalog.Keywords)))

	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	DisplaySuccess(w, "Alpha Vantage API key is set.")
	return nil
}

// runInteractiveMode starts the REPL
func runInteractiveMode(cmd *cobra.Command, opts *globalOptions) error {
	a, err := bootstrap(cmd.OutOrStdout(), opts, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	bot := a.newBot(&a.cfg, a.recorder(), nil, nil)
	prompt := func() (string, error) { return PromptForCommand(a.catalog) }
	return NewInteractiveSession(bot, prompt, a.out).Start(cmd.Context())
}
