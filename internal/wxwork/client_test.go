package wxwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, apiBase string) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		APIBase: apiBase,
		Credentials: Credentials{
			CorpID:     "wwtest",
			CorpSecret: "secret",
			AgentID:    "1000002",
		},
		RetryMax: 0,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetTokenCachesWithinValidity(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gettoken", r.URL.Path)
		assert.Equal(t, "wwtest", r.URL.Query().Get("corpid"))
		assert.Equal(t, "secret", r.URL.Query().Get("corpsecret"))
		calls++
		fmt.Fprintf(w, `{"errcode":0,"errmsg":"ok","access_token":"T1","expires_in":7200}`)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	token, err := client.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	token, err = client.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	assert.Equal(t, 1, calls, "second call within validity must not hit the network")
}

func TestGetTokenRefetchesAfterInvalidate(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"errcode":0,"errmsg":"ok","access_token":"T%d","expires_in":7200}`, calls)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	token, err := client.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	client.Invalidate()

	token, err = client.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", token)
	assert.Equal(t, 2, calls)
}

func TestGetTokenRefetchesAfterExpiry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"errcode":0,"errmsg":"ok","access_token":"T%d","expires_in":0}`, calls)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	_, err := client.GetToken(context.Background())
	require.NoError(t, err)

	token, err := client.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", token)
	assert.Equal(t, 2, calls)
}

func TestGetTokenRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errcode":40013,"errmsg":"invalid corpid"}`)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	_, err := client.GetToken(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 40013, apiErr.Code)
	assert.Equal(t, "invalid corpid", apiErr.Msg)
	assert.False(t, apiErr.TokenInvalid())
}

func TestGetTokenNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := testClient(t, srv.URL)

	_, err := client.GetToken(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures must not classify as APIError")
}

func TestGetTokenMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>gateway error</html>")
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	_, err := client.GetToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestGetUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user/getuserinfo", r.URL.Path)
		assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))
		assert.Equal(t, "CODE", r.URL.Query().Get("code"))
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok","UserId":"zhangsan"}`)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	userID, err := client.GetUserID(context.Background(), "TOKEN", "CODE")
	require.NoError(t, err)
	assert.Equal(t, "zhangsan", userID)
}

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user/get", r.URL.Path)
		assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))
		assert.Equal(t, "zhangsan", r.URL.Query().Get("userid"))
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok","userid":"zhangsan","name":"Zhang San","email":"zhangsan@example.com"}`)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	user, err := client.GetUser(context.Background(), "TOKEN", "zhangsan")
	require.NoError(t, err)
	assert.Equal(t, "zhangsan", user.UserID)
	assert.Equal(t, "Zhang San", user.Name)
	assert.Equal(t, "zhangsan@example.com", user.Email)
}

func TestSendMessage(t *testing.T) {
	var received Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/message/send", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	err := client.SendMessage(context.Background(), "TOKEN", &Message{
		MsgType:  "markdown",
		AgentID:  "1000002",
		Markdown: Markdown{Content: "hello"},
		ToUser:   "zhangsan|lisi",
	})
	require.NoError(t, err)
	assert.Equal(t, "markdown", received.MsgType)
	assert.Equal(t, "hello", received.Markdown.Content)
	assert.Equal(t, "zhangsan|lisi", received.ToUser)
}

func TestSendMessageTokenInvalid(t *testing.T) {
	for _, code := range []int{ErrCodeInvalidToken, ErrCodeTokenExpired} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"errcode":%d,"errmsg":"token trouble"}`, code)
		}))

		client := testClient(t, srv.URL)
		err := client.SendMessage(context.Background(), "STALE", &Message{})
		assert.True(t, IsTokenInvalid(err), "errcode %d must classify as token-invalid", code)

		srv.Close()
	}
}

func TestSendMessageOtherError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errcode":81013,"errmsg":"all receivers invalid"}`)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	err := client.SendMessage(context.Background(), "TOKEN", &Message{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 81013, apiErr.Code)
	assert.False(t, IsTokenInvalid(err))
}
