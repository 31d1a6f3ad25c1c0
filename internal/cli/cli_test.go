package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockBot/config"
	"github.com/dyike/StockBot/internal/keywords"
	"github.com/dyike/StockBot/internal/models"
	"github.com/dyike/StockBot/internal/service"
	"github.com/dyike/StockBot/internal/storage"
)

type testEnv struct {
	dir        string
	configPath string
	calls      atomic.Int32
}

// newTestEnv points the CLI at a fake Alpha Vantage and a temporary data dir.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{dir: t.TempDir()}
	env.configPath = filepath.Join(env.dir, "config.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.calls.Add(1)
		symbol := r.URL.Query().Get("symbol")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Global Quote":{"01. symbol":"` + symbol +
			`","02. open":"1","03. high":"2","04. low":"0.5","05. price":"1.5","06. volume":"10"}}`))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("AV_API", "test-key")
	t.Setenv("ALPHA_VANTAGE_API_KEY", "")
	t.Setenv("ALPHA_VANTAGE_BASE_URL", srv.URL)
	t.Setenv("STOCKBOT_DATA_DIR", env.dir)
	t.Setenv("STOCKBOT_DB_PATH", filepath.Join(env.dir, "history.db"))
	t.Setenv("STOCKBOT_MAX_RETRIES", "0")
	t.Setenv("STOCKBOT_LOG_LEVEL", "error")
	t.Setenv("STOCKBOT_RECORD_HISTORY", "")
	t.Setenv("KEYWORDS_FILE", "")
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAskCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "ask", "price,", "current:", "TSLA")
	require.NoError(t, err)
	assert.Contains(t, out, "TSLA")
	assert.Contains(t, out, "Current price: 1.5")
	assert.Contains(t, out, "Volume: 10")
	assert.EqualValues(t, 1, env.calls.Load())
}

func TestAskJSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "ask", "--json", "price,current:TSLA,V")
	require.NoError(t, err)

	var reply service.Reply
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	assert.True(t, reply.Success)
	assert.Equal(t, "realtime", reply.QueryType)
	require.Len(t, reply.Results, 2)
	assert.Equal(t, "V", reply.Results[1].Label)
	assert.NotEmpty(t, reply.ConversationID)
}

func TestAskCommandError(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "ask", "--json", "price,bogus:TSLA")
	require.NoError(t, err)

	var reply service.Reply
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	assert.False(t, reply.Success)
	assert.Equal(t, models.KindInvalidKeywordMix, reply.ErrorKind)
	assert.Zero(t, env.calls.Load())
}

func TestAskRequiresAPIKey(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("AV_API", "")

	_, err := env.run(t, "ask", "price,current:TSLA")
	require.Error(t, err)
	assert.Zero(t, env.calls.Load())
}

func TestHistoryCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "ask", "--json", "price,current:TSLA")
	require.NoError(t, err)
	var reply service.Reply
	require.NoError(t, json.Unmarshal([]byte(out), &reply))

	_, err = env.run(t, "ask", "--conversation", reply.ConversationID, "nonsense")
	require.NoError(t, err)

	out, err = env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, reply.ConversationID)
	assert.Contains(t, out, "4 messages")

	out, err = env.run(t, "history", reply.ConversationID)
	require.NoError(t, err)
	assert.Contains(t, out, "price,current:TSLA")
	assert.Contains(t, out, "INFO: The input format was invalid.")

	_, err = env.run(t, "history", "delete", "--yes", reply.ConversationID)
	require.NoError(t, err)

	_, err = env.run(t, "history", reply.ConversationID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "--no-history", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestKeywordsCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "keywords", "--json")
	require.NoError(t, err)
	var catalog keywords.Catalog
	require.NoError(t, json.Unmarshal([]byte(out), &catalog))
	assert.Equal(t, keywords.Default(), &catalog)

	out, err = env.run(t, "keywords")
	require.NoError(t, err)
	for _, kw := range []string{"dividendyield", "price", "yesterday", "lastyear"} {
		assert.Contains(t, out, kw)
	}
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, env.configPath, strings.TrimSpace(out))

	out, err = env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha Vantage API:    configured")
	assert.NotContains(t, out, "test-key")

	out, err = env.run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "API key is set")

	mgr, err := config.NewManager(config.WithConfigPath(env.configPath))
	require.NoError(t, err)
	cfg := mgr.Get()
	cfg.MaxConcurrentCalls = 9
	require.NoError(t, mgr.Update(cfg))

	_, err = env.run(t, "config", "reset", "--yes")
	require.NoError(t, err)

	reopened, err := config.NewManager(config.WithConfigPath(env.configPath))
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Get().MaxConcurrentCalls)
}

func TestConfigValidateRejectsBadLevel(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "--log-level", "loud", "config", "validate")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "StockBot "+Version+"\n", out)
}

func TestBatchCommand(t *testing.T) {
	env := newTestEnv(t)
	file := filepath.Join(env.dir, "commands.txt")
	require.NoError(t, os.WriteFile(file, []byte("# watchlist\nprice,current:TSLA\n\nprice,bogus:V\nprice,current:MA\n"), 0o644))

	out, err := env.run(t, "batch", "-c", "2", file)
	require.NoError(t, err)

	assert.Less(t, strings.Index(out, "> price,current:TSLA"), strings.Index(out, "> price,bogus:V"))
	assert.Less(t, strings.Index(out, "> price,bogus:V"), strings.Index(out, "> price,current:MA"))
	assert.Contains(t, out, "INVALID_KEYWORD_MIX")
	assert.Contains(t, out, "1 of 3 commands failed")
	assert.NotContains(t, out, "watchlist")
	assert.EqualValues(t, 2, env.calls.Load())
}

func TestLoadCommandsFromFileEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(file, []byte("# nothing\n\n"), 0o644))

	_, err := LoadCommandsFromFile(file)
	assert.Error(t, err)
}
