// Package service runs user commands end to end: parse, plan, fetch, format.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyike/StockBot/config"
	"github.com/dyike/StockBot/internal/formatting"
	"github.com/dyike/StockBot/internal/keywords"
	"github.com/dyike/StockBot/internal/models"
	"github.com/dyike/StockBot/internal/parsing"
	"github.com/dyike/StockBot/internal/storage"
)

// Gateway performs the upstream calls of a plan.
type Gateway interface {
	Call(ctx context.Context, reqs []models.RequestParams) ([]models.RawReply, error)
}

// Recorder persists an exchange. *storage.Store and *storage.Recorder both
// satisfy it.
type Recorder interface {
	Record(ctx context.Context, ex storage.Exchange) error
}

// Outcome describes one handled query for metrics.
type Outcome struct {
	QueryType string
	ErrorKind models.ErrorKind
	Elapsed   time.Duration
}

type Query struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"message"`
}

type Reply struct {
	Success        bool                   `json:"success"`
	Content        string                 `json:"content"`
	Results        models.FormattedResult `json:"results,omitempty"`
	QueryType      string                 `json:"query_type,omitempty"`
	ErrorKind      models.ErrorKind       `json:"error_kind,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
}

// Bot is immutable once built; a config change means building a new Bot.
type Bot struct {
	catalog   *keywords.Catalog
	planner   *parsing.Planner
	formatter *formatting.Formatter
	gateway   Gateway
	recorder  Recorder
	logger    *zap.Logger
	debug     bool
	observe   func(Outcome)
}

type Option func(*Bot)

func WithRecorder(r Recorder) Option {
	return func(b *Bot) {
		b.recorder = r
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithOutcomeObserver(fn func(Outcome)) Option {
	return func(b *Bot) {
		b.observe = fn
	}
}

func NewBot(catalog *keywords.Catalog, cfg *config.Config, gateway Gateway, opts ...Option) *Bot {
	b := &Bot{
		catalog:   catalog,
		planner:   parsing.NewPlanner(catalog, cfg.APIKey),
		formatter: formatting.NewFormatter(catalog),
		gateway:   gateway,
		logger:    zap.NewNop(),
		debug:     cfg.Debug,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bot) Catalog() *keywords.Catalog {
	return b.catalog
}

// Handle answers one command. User and upstream failures are reported in the
// Reply, never as a Go error. With a recorder attached, a missing
// conversation id is generated and the exchange is stored.
func (b *Bot) Handle(ctx context.Context, q Query) *Reply {
	start := time.Now()
	reply := &Reply{ConversationID: q.ConversationID}
	if b.recorder != nil && reply.ConversationID == "" {
		reply.ConversationID = uuid.NewString()
	}

	plan, result, err := b.run(ctx, q.Text)
	if plan != nil {
		reply.QueryType = plan.Type.String()
	}
	if err != nil {
		reply.Content = UserMessage(err)
		reply.ErrorKind = models.KindOf(err)
		b.logger.Debug("query failed",
			zap.String("conversation_id", reply.ConversationID),
			zap.String("error_kind", string(reply.ErrorKind)),
			zap.Error(err))
	} else {
		reply.Success = true
		reply.Results = result
		reply.Content = RenderContent(result)
		b.logger.Debug("query answered",
			zap.String("conversation_id", reply.ConversationID),
			zap.String("query_type", reply.QueryType),
			zap.Int("tickers", len(result)))
	}

	if b.observe != nil {
		b.observe(Outcome{QueryType: reply.QueryType, ErrorKind: reply.ErrorKind, Elapsed: time.Since(start)})
	}
	b.record(ctx, q.Text, reply)
	return reply
}

func (b *Bot) run(ctx context.Context, text string) (*models.QueryPlan, models.FormattedResult, error) {
	plan, err := b.planner.ParseAndPlan(text)
	if err != nil {
		return nil, nil, err
	}

	replies, err := b.gateway.Call(ctx, plan.Requests)
	if err != nil {
		return plan, nil, err
	}

	result, err := b.formatter.Format(replies, plan)
	if err != nil {
		if b.debug {
			raw := make([]string, len(replies))
			for i, r := range replies {
				raw[i] = string(r)
			}
			b.logger.Debug("unformattable replies", zap.Strings("replies", raw), zap.Error(err))
		}
		return plan, nil, err
	}
	return plan, result, nil
}

func (b *Bot) record(ctx context.Context, text string, reply *Reply) {
	if b.recorder == nil {
		return
	}
	err := b.recorder.Record(ctx, storage.Exchange{
		ConversationID: reply.ConversationID,
		Query:          text,
		Reply:          reply.Content,
		Success:        reply.Success,
	})
	if err != nil {
		b.logger.Warn("record exchange failed",
			zap.String("conversation_id", reply.ConversationID),
			zap.Error(err))
	}
}
