package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/marcogenualdo/wxwork-bridge/internal/wxwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeNotifyAPI(t *testing.T, sendErrCode int) (*httptest.Server, *int) {
	t.Helper()
	sendCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gettoken":
			fmt.Fprint(w, `{"errcode":0,"errmsg":"ok","access_token":"NOTIFY-TOKEN","expires_in":7200}`)
		case "/message/send":
			sendCalls++
			fmt.Fprintf(w, `{"errcode":%d,"errmsg":"scripted"}`, sendErrCode)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &sendCalls
}

func testNotifyHandler(t *testing.T, cfg config.Config) *NotifyHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := wxwork.NewClient(wxwork.ClientConfig{
		APIBase: cfg.WXWork.APIBase,
		Credentials: wxwork.Credentials{
			CorpID:     cfg.WXWork.CorpID,
			CorpSecret: cfg.WXWork.CorpSecret,
			AgentID:    cfg.WXWork.AgentID,
		},
		RetryMax: 0,
	}, logger)

	handler, err := NewNotifyHandler(cfg, client, logger)
	require.NoError(t, err)
	return handler
}

const eventPayload = `{
	"project": {"slug": "backend", "name": "Backend", "url": "https://sentry.example.com/backend/"},
	"event": {"title": "ZeroDivisionError", "message": "division by zero", "tags": {"level": "error"}}
}`

func TestNotifyDelivers(t *testing.T) {
	srv, sendCalls := fakeNotifyAPI(t, 0)
	handler := testNotifyHandler(t, testConfig(srv.URL))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(eventPayload)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *sendCalls)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sent", resp["status"])
}

func TestNotifyDeliveryFailure(t *testing.T) {
	srv, _ := fakeNotifyAPI(t, 81013)
	handler := testNotifyHandler(t, testConfig(srv.URL))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(eventPayload)))

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp["status"])
	assert.NotEmpty(t, resp["error"])
}

func TestNotifyUnknownProjectUsesDefaultSender(t *testing.T) {
	srv, sendCalls := fakeNotifyAPI(t, 0)
	handler := testNotifyHandler(t, testConfig(srv.URL))

	body := `{"project": {"slug": "no-such-project"}, "event": {"title": "boom"}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *sendCalls)
}

func TestNotifyRejectsBadPayload(t *testing.T) {
	srv, sendCalls := fakeNotifyAPI(t, 0)
	handler := testNotifyHandler(t, testConfig(srv.URL))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, *sendCalls)
}

func TestNotifyRejectsNonPost(t *testing.T) {
	srv, _ := fakeNotifyAPI(t, 0)
	handler := testNotifyHandler(t, testConfig(srv.URL))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notify", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewNotifyHandlerRejectsBadTemplate(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Notify.MessageTemplate = "{title"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := wxwork.NewClient(wxwork.ClientConfig{APIBase: cfg.WXWork.APIBase, RetryMax: 0}, logger)

	_, err := NewNotifyHandler(cfg, client, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify config")
}

func TestNewNotifyHandlerRejectsBadProjectTemplate(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Projects = map[string]config.ProjectConfig{
		"backend": {Notify: config.NotifyConfig{ToUser: "lisi", MessageTemplate: "{nope}"}},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := wxwork.NewClient(wxwork.ClientConfig{APIBase: cfg.WXWork.APIBase, RetryMax: 0}, logger)

	_, err := NewNotifyHandler(cfg, client, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project backend")
}
