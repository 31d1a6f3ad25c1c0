package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockBot/config"
	"github.com/dyike/StockBot/internal/keywords"
	"github.com/dyike/StockBot/internal/models"
	"github.com/dyike/StockBot/internal/service"
	"github.com/dyike/StockBot/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type quoteGateway struct {
	price string
}

func (g quoteGateway) Call(_ context.Context, reqs []models.RequestParams) ([]models.RawReply, error) {
	out := make([]models.RawReply, len(reqs))
	for i, r := range reqs {
		out[i] = models.RawReply(`{"Global Quote":{"01. symbol":"` + r.Symbol + `","02. open":"1","03. high":"2","04. low":"0.5","05. price":"` +
			g.price + `","06. volume":"10"}}`)
	}
	return out, nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.APIKey = "k"

	metrics := NewMetrics()
	opts := []service.Option{service.WithOutcomeObserver(metrics.ObserveQuery)}
	serverOpts := []Option{WithMetrics(metrics)}
	if withStore {
		store, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		opts = append(opts, service.WithRecorder(store))
		serverOpts = append(serverOpts, WithStore(store))
	}

	bot := service.NewBot(keywords.Default(), cfg, quoteGateway{price: "1.5"}, opts...)
	return New("127.0.0.1:0", bot, serverOpts...)
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w, env := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestPostMessage(t *testing.T) {
	s := newTestServer(t, false)

	w, env := do(t, s, http.MethodPost, "/api/messages", map[string]string{"message": "price,current:TSLA"})
	require.Equal(t, http.StatusOK, w.Code)

	var reply service.Reply
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.True(t, reply.Success)
	assert.Equal(t, "realtime", reply.QueryType)
	assert.Equal(t, "TSLA\nCurrent price: 1.5\nOpen: 1\nHigh: 2\nLow: 0.5\nVolume: 10\n\n\n", reply.Content)
}

func TestPostMessageCommandError(t *testing.T) {
	s := newTestServer(t, false)

	w, env := do(t, s, http.MethodPost, "/api/messages", map[string]string{"message": "price current TSLA"})
	require.Equal(t, http.StatusOK, w.Code)

	var reply service.Reply
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.False(t, reply.Success)
	assert.Equal(t, models.KindMalformedInput, reply.ErrorKind)
	assert.Equal(t, "INFO: The input format was invalid.", reply.Content)
}

func TestPostMessageBadBody(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestKeywords(t *testing.T) {
	s := newTestServer(t, false)
	_, env := do(t, s, http.MethodGet, "/api/keywords", nil)

	var catalog keywords.Catalog
	require.NoError(t, json.Unmarshal(env.Data, &catalog))
	assert.Equal(t, []string{"price"}, catalog.ModifiableKeywords)
	assert.Len(t, catalog.Keywords, keywords.FixedKeywordCount)
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(t, false)
	w, env := do(t, s, http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "history is disabled", env.Msg)
}

func TestConversationRoutes(t *testing.T) {
	s := newTestServer(t, true)

	_, env := do(t, s, http.MethodPost, "/api/messages", map[string]string{"message": "price,current:V"})
	var first service.Reply
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.NotEmpty(t, first.ConversationID)

	do(t, s, http.MethodPost, "/api/messages", map[string]string{
		"message":         "price,bogus:V",
		"conversation_id": first.ConversationID,
	})
	do(t, s, http.MethodPost, "/api/messages", map[string]string{"message": "price,current:MA"})

	w, env := do(t, s, http.MethodGet, "/api/conversations?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page conversationPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Conversations, 1)
	assert.NotEqual(t, first.ConversationID, page.Conversations[0].ID)
	require.NotZero(t, page.NextCursor)

	_, env = do(t, s, http.MethodGet, "/api/conversations?limit=1&cursor="+itoa(page.NextCursor), nil)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, first.ConversationID, page.Conversations[0].ID)
	assert.Equal(t, 4, page.Conversations[0].MessageCount)

	w, env = do(t, s, http.MethodGet, "/api/conversations/"+first.ConversationID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []storage.Message
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 4)
	assert.Equal(t, "price,bogus:V", msgs[2].Content)
	assert.Equal(t, "INFO: There were invalid keywords in the input.", msgs[3].Content)
	assert.False(t, msgs[3].Success)

	w, _ = do(t, s, http.MethodDelete, "/api/conversations/"+first.ConversationID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, s, http.MethodGet, "/api/conversations/"+first.ConversationID+"/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "conversation not found", env.Msg)

	w, _ = do(t, s, http.MethodGet, "/api/conversations?cursor=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetBotSwapsGateway(t *testing.T) {
	s := newTestServer(t, false)
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.APIKey = "k"
	s.SetBot(service.NewBot(keywords.Default(), cfg, quoteGateway{price: "9"}))

	_, env := do(t, s, http.MethodPost, "/api/messages", map[string]string{"message": "price,current:TSLA"})
	var reply service.Reply
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Contains(t, reply.Content, "Current price: 9")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	do(t, s, http.MethodPost, "/api/messages", map[string]string{"message": "price,current:TSLA"})
	do(t, s, http.MethodPost, "/api/messages", map[string]string{"message": "nonsense"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `stockbot_bot_queries_total{outcome="ok",type="realtime"} 1`)
	assert.Contains(t, body, `stockbot_bot_queries_total{outcome="MALFORMED_INPUT",type=""} 1`)
	assert.Contains(t, body, `stockbot_http_requests_total{method="POST",route="/api/messages",status="200"} 2`)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, false)
	w, env := do(t, s, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
