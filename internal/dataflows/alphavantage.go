// Package dataflows fetches market data from Alpha Vantage.
package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/StockBot/config"
	"github.com/dyike/StockBot/internal/models"
)

const queryPath = "/query"

// Top-level keys Alpha Vantage uses instead of a payload.
const (
	errorMessageKey = "Error Message"
	noteKey         = "Note"
	informationKey  = "Information"
)

// CallObserver is told about every finished upstream call.
type CallObserver func(function string, elapsed time.Duration, err error)

// AlphaVantageClient issues the calls of a query plan. It is safe for
// concurrent use.
type AlphaVantageClient struct {
	client        *resty.Client
	retry         *RetryConfig
	maxConcurrent int
	logger        *zap.Logger
	observe       CallObserver
}

type ClientOption func(*AlphaVantageClient)

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *AlphaVantageClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithObserver(observe CallObserver) ClientOption {
	return func(c *AlphaVantageClient) {
		c.observe = observe
	}
}

func WithRetryConfig(retry *RetryConfig) ClientOption {
	return func(c *AlphaVantageClient) {
		if retry != nil {
			c.retry = retry
		}
	}
}

// NewAlphaVantageClient creates a client from the gateway settings in cfg.
func NewAlphaVantageClient(cfg *config.Config, opts ...ClientOption) *AlphaVantageClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/"))
	client.SetTimeout(cfg.RequestTimeout())
	client.SetHeader("Accept", "application/json")

	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	retry.BaseDelay = cfg.RetryBaseDelay()

	maxConcurrent := cfg.MaxConcurrentCalls
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	c := &AlphaVantageClient{
		client:        client,
		retry:         retry,
		maxConcurrent: maxConcurrent,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs one GET per request and returns the replies in request
// order. At most maxConcurrent calls are in flight. The first failure
// cancels the remaining calls and no replies are returned.
func (c *AlphaVantageClient) Call(ctx context.Context, reqs []models.RequestParams) ([]models.RawReply, error) {
	replies := make([]models.RawReply, len(reqs))
	if len(reqs) == 0 {
		return replies, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for i, req := range reqs {
		g.Go(func() error {
			reply, err := c.fetch(gctx, req)
			if err != nil {
				return err
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return replies, nil
}

func (c *AlphaVantageClient) fetch(ctx context.Context, req models.RequestParams) (models.RawReply, error) {
	start := time.Now()
	var reply models.RawReply

	err := WithRetry(ctx, c.retry, func() error {
		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(req.Values()).
			Get(queryPath)
		if err != nil {
			c.logger.Debug("alpha vantage transport error",
				zap.String("function", req.Function),
				zap.String("symbol", req.Symbol),
				zap.Error(err))
			return fmt.Errorf("request %s %s: %w", req.Function, req.Symbol, err)
		}

		if resp.StatusCode() != http.StatusOK {
			return Permanent(models.GatewayHTTPError(resp.StatusCode()))
		}
		body := resp.Body()
		if err := classify(body); err != nil {
			return Permanent(err)
		}
		reply = append(models.RawReply(nil), body...)
		return nil
	})

	elapsed := time.Since(start)
	if err != nil {
		if _, ok := models.AsCommandError(err); !ok {
			err = models.NewCommandError(models.KindGatewayUnavailable,
				"market data API unreachable").WithCause(err)
		}
	}
	if c.observe != nil {
		c.observe(req.Function, elapsed, err)
	}
	c.logger.Debug("alpha vantage call",
		zap.String("function", req.Function),
		zap.String("symbol", req.Symbol),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))
	return reply, err
}

// classify inspects a 200 reply for the documents Alpha Vantage sends in
// place of data.
func classify(body []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.NewCommandError(models.KindMalformedReply, "reply is not a JSON object").WithCause(err)
	}
	if len(doc) == 0 {
		return models.NewCommandError(models.KindGatewayEmpty, "empty reply")
	}

	if msg, ok := stringField(doc, errorMessageKey); ok {
		return models.NewCommandError(models.KindGatewayEmpty, "%s", msg)
	}
	for _, key := range []string{noteKey, informationKey} {
		if msg, ok := stringField(doc, key); ok {
			return models.NewCommandError(models.KindGatewayNotice, "%s", msg)
		}
	}

	if onlyEmptyObjects(doc) {
		return models.NewCommandError(models.KindGatewayEmpty, "reply has no data")
	}
	return nil
}

func stringField(doc map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := doc[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

// onlyEmptyObjects reports whether every top-level value is {} or null, as
// in {"Global Quote": {}} for an unknown symbol.
func onlyEmptyObjects(doc map[string]json.RawMessage) bool {
	for _, raw := range doc {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return false
		}
		if len(obj) > 0 {
			return false
		}
	}
	return true
}
