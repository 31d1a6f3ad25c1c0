package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrRecorderClosed is returned by Record after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// Exchange is one user command and the bot's answer to it.
type Exchange struct {
	ConversationID string
	Query          string
	Reply          string
	Success        bool
}

// Record stores ex synchronously as two messages: the user's query and then
// the bot's reply.
func (s *Store) Record(ctx context.Context, ex Exchange) error {
	if _, err := s.AppendMessage(ctx, NewMessage{
		ConversationID: ex.ConversationID,
		IsUser:         true,
		Content:        ex.Query,
		Success:        true,
	}); err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	if _, err := s.AppendMessage(ctx, NewMessage{
		ConversationID: ex.ConversationID,
		IsUser:         false,
		Content:        ex.Reply,
		Success:        ex.Success,
	}); err != nil {
		return fmt.Errorf("record reply: %w", err)
	}
	return nil
}

// Recorder writes exchanges on a background goroutine so request handling
// never waits on SQLite. Exchanges are written in the order they are queued.
type Recorder struct {
	store   *Store
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Exchange
	wg     sync.WaitGroup
}

// NewRecorder starts a recorder with room for queueSize pending exchanges.
func NewRecorder(store *Store, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
		events:  make(chan Exchange, queueSize),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Record queues ex. It blocks only while the queue is full.
func (r *Recorder) Record(ctx context.Context, ex Exchange) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.events <- ex:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting exchanges and waits for the queue to drain.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for ex := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.store.Record(ctx, ex); err != nil {
			r.logger.Error("record exchange failed",
				zap.String("conversation_id", ex.ConversationID),
				zap.Error(err))
		}
		cancel()
	}
}
