package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamperito/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "serve.db")
	cfg.WhatsApp.VerifyToken = "secret"
	cfg.Business.AdminPhone = "5493460000000"
	return cfg
}

func postMessage(t *testing.T, h http.Handler, msg string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(msg))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func textMessage(from, body string) string {
	return `{"entry":[{"changes":[{"value":{"messages":[{"id":"m","from":"` + from +
		`","type":"text","text":{"body":"` + body + `"}}]}}]}]}`
}

func buttonMessage(from, id, title string) string {
	return `{"entry":[{"changes":[{"value":{"messages":[{"id":"m","from":"` + from +
		`","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"` + id +
		`","title":"` + title + `"}}}]}}]}]}`
}

func TestBuildApp_ServesWebhooks(t *testing.T) {
	logs := &bytes.Buffer{}
	a, err := buildApp(testConfig(t), slog.New(slog.NewTextHandler(logs, nil)))
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	const phone = "5493462111111"
	postMessage(t, a.handler, textMessage(phone, "hola"))
	postMessage(t, a.handler, textMessage(phone, "soy carlos"))
	postMessage(t, a.handler, buttonMessage(phone, "name_yes", "Sí"))

	c, err := a.store.GetCustomer(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, "Carlos", c.Name)
	assert.Equal(t, "venado_tuerto", c.Zone)
	assert.Contains(t, logs.String(), "whatsapp token not set")
}

func TestBuildApp_PaymentWebhookWithoutToken(t *testing.T) {
	a, err := buildApp(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/mp?type=payment&data.id=123", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildApp_CatalogFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Business.CatalogFile = writeCatalog(t, testCatalog)
	a, err := buildApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	a.Close()

	cfg = testConfig(t)
	cfg.Business.CatalogFile = writeCatalog(t, `products: {`)
	_, err = buildApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServe_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pamperito.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watcher:\n  nudge_after: 1h\n  expire_after: 30m\n"), 0o644))

	_, _, err := execute(t, "serve", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "nudge_after must be shorter")
}

func TestServe_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--db", filepath.Join(t.TempDir(), "serve.db"), "--addr", "127.0.0.1:0"})

	require.NoError(t, cmd.ExecuteContext(ctx))
}
