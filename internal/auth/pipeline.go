// Package auth implements the three-stage WeChat Work login pipeline:
// redirect to the provider, exchange the callback code for a token, fetch
// the user profile. Stage progress lives in a Helper so the pipeline can be
// resumed across requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/marcogenualdo/wxwork-bridge/internal/wxwork"
	"github.com/marcogenualdo/wxwork-bridge/pkg/security"
)

// nativeAgentMarker appears in the User-Agent of the WeChat Work built-in
// browser, which must go through the in-app authorize endpoint instead of
// the QR login page.
const nativeAgentMarker = "wxwork"

// ErrInvalidState is the user-visible abort message for a state nonce
// mismatch. Deliberately generic: it must not reveal whether the bound state
// was absent or tampered with.
var ErrInvalidState = &AbortError{Message: "An error occurred while validating your request."}

// AbortError carries a message meant for the end user. Any other error out
// of a stage is an internal failure the handler should not echo back.
type AbortError struct {
	Message string
}

func (e *AbortError) Error() string {
	return e.Message
}

// StepResult is what the login stage tells the HTTP layer to do next.
type StepResult struct {
	// Next means the inbound request already carries an authorization code
	// and the callback stage should run in this same request cycle.
	Next bool

	// RedirectURL is where to send the browser when Next is false.
	RedirectURL string
}

// Pipeline runs the login state machine for one corp. The per-login tokens
// it requests are deliberately not the client's cached corp token; each
// login gets its own short-lived one.
type Pipeline struct {
	client       *wxwork.Client
	authorizeURL string
	qrLoginURL   string
	scope        string
	logger       *slog.Logger
}

func NewPipeline(client *wxwork.Client, cfg config.WXWorkConfig, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		client:       client,
		authorizeURL: cfg.AuthorizeURL,
		qrLoginURL:   cfg.QRLoginURL,
		scope:        cfg.Scope,
		logger:       logger,
	}
}

// Login is stage one. It binds a fresh state nonce and picks the redirect
// target by caller environment, or skips ahead when the redirect already
// happened in a prior request cycle.
func (p *Pipeline) Login(ctx context.Context, r *http.Request, helper Helper) (*StepResult, error) {
	if r.URL.Query().Get("code") != "" {
		return &StepResult{Next: true}, nil
	}

	stateNonce, err := security.StateNonce()
	if err != nil {
		return nil, fmt.Errorf("auth: generate state nonce: %w", err)
	}

	if err := helper.BindState(ctx, "state", stateNonce); err != nil {
		return nil, fmt.Errorf("auth: bind state: %w", err)
	}

	creds := p.client.Credentials()
	redirectURI := helper.RedirectURL()

	var target string
	if strings.Contains(r.UserAgent(), nativeAgentMarker) {
		values, err := query.Values(wxwork.AuthorizeParams{
			AppID:        creds.CorpID,
			ResponseType: "code",
			Scope:        p.scope,
			State:        stateNonce,
			RedirectURI:  redirectURI,
		})
		if err != nil {
			return nil, fmt.Errorf("auth: encode authorize params: %w", err)
		}
		target = p.authorizeURL + "?" + values.Encode() + "#wechat_redirect"
	} else {
		values, err := query.Values(wxwork.QRLoginParams{
			AppID:       creds.CorpID,
			AgentID:     creds.AgentID,
			State:       stateNonce,
			RedirectURI: redirectURI,
		})
		if err != nil {
			return nil, fmt.Errorf("auth: encode qrlogin params: %w", err)
		}
		target = p.qrLoginURL + "?" + values.Encode()
	}

	return &StepResult{RedirectURL: target}, nil
}

// Callback is stage two. It verifies the state nonce, exchanges the code for
// a login token and binds both for the fetch-user stage. An *AbortError
// return ends the flow with a message for the user.
func (p *Pipeline) Callback(ctx context.Context, r *http.Request, helper Helper) error {
	q := r.URL.Query()

	if errMsg := q.Get("error"); errMsg != "" {
		return &AbortError{Message: errMsg}
	}

	var boundState string
	if err := helper.FetchState(ctx, "state", &boundState); err != nil {
		if errors.Is(err, ErrNoState) {
			return ErrInvalidState
		}
		return fmt.Errorf("auth: fetch bound state: %w", err)
	}

	if q.Get("state") != boundState {
		p.logger.Warn("state nonce mismatch on auth callback")
		return ErrInvalidState
	}

	data, err := p.client.RequestToken(ctx)
	if err != nil {
		return fmt.Errorf("auth: exchange token: %w", err)
	}
	if data.ErrCode != wxwork.ErrCodeOK {
		return &AbortError{Message: data.ErrMsg}
	}

	if err := helper.BindState(ctx, "code", q.Get("code")); err != nil {
		return fmt.Errorf("auth: bind code: %w", err)
	}
	if err := helper.BindState(ctx, "data", data); err != nil {
		return fmt.Errorf("auth: bind token data: %w", err)
	}

	return nil
}

// FetchUser is stage three. It resolves the member behind the authorization
// code and builds the identity handed back to the host.
func (p *Pipeline) FetchUser(ctx context.Context, helper Helper) (*Identity, error) {
	var data wxwork.TokenResponse
	if err := helper.FetchState(ctx, "data", &data); err != nil {
		return nil, fmt.Errorf("auth: fetch token data: %w", err)
	}

	var code string
	if err := helper.FetchState(ctx, "code", &code); err != nil {
		return nil, fmt.Errorf("auth: fetch code: %w", err)
	}

	userID, err := p.client.GetUserID(ctx, data.AccessToken, code)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve user id: %w", err)
	}

	user, err := p.client.GetUser(ctx, data.AccessToken, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch user profile: %w", err)
	}

	if err := helper.BindState(ctx, "user", user); err != nil {
		return nil, fmt.Errorf("auth: bind user: %w", err)
	}

	return &Identity{
		ID:    user.UserID,
		Email: user.Email,
		Name:  user.Name,
		Data: IdentityData{
			AccessToken: data.AccessToken,
			Expires:     time.Now().Unix() + data.ExpiresIn,
		},
	}, nil
}

// RefreshIdentity renews the token data of a stored identity using corp
// credentials, outside the interactive pipeline. ErrIdentityInvalid tells
// the host the user must log in again; it is never retried here.
func (p *Pipeline) RefreshIdentity(ctx context.Context, identity *Identity) error {
	resp, err := p.client.RequestToken(ctx)
	if err != nil {
		return err
	}
	if resp.ErrCode != wxwork.ErrCodeOK {
		return fmt.Errorf("%w: errcode %d: %s", ErrIdentityInvalid, resp.ErrCode, resp.ErrMsg)
	}

	identity.Data = IdentityData{
		AccessToken: resp.AccessToken,
		Expires:     time.Now().Unix() + resp.ExpiresIn,
	}
	return nil
}
