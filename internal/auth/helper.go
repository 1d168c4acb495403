package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcogenualdo/wxwork-bridge/internal/state"
)

// ErrNoState is returned by FetchState when the key was never bound or has
// already expired.
var ErrNoState = errors.New("auth: state not bound")

// Helper is the session/state capability the pipeline stages run against.
// One stage binds a value, a later stage fetches it; the pipeline itself
// never persists anything. The bridge backs it with the state store, but a
// host embedding the pipeline as a library may supply its own.
type Helper interface {
	BindState(ctx context.Context, key string, value any) error
	FetchState(ctx context.Context, key string, dst any) error

	// RedirectURL returns the absolute callback URL for this flow.
	RedirectURL() string
}

// FlowStore hands out Helpers bound to a flow ID, persisting values in the
// state store as JSON under authflow:{flowID}:{key}.
type FlowStore struct {
	store state.Store
	ttl   time.Duration
}

func NewFlowStore(store state.Store, ttl time.Duration) *FlowStore {
	return &FlowStore{store: store, ttl: ttl}
}

func (fs *FlowStore) Flow(flowID, redirectURL string) *Flow {
	return &Flow{store: fs, id: flowID, redirectURL: redirectURL}
}

// Flow is the Helper for one login attempt.
type Flow struct {
	store       *FlowStore
	id          string
	redirectURL string
}

func (f *Flow) BindState(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("auth: encode state %q: %w", key, err)
	}
	return f.store.store.Set(ctx, f.key(key), data, f.store.ttl)
}

func (f *Flow) FetchState(ctx context.Context, key string, dst any) error {
	data, err := f.store.store.Get(ctx, f.key(key))
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrNoState
		}
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("auth: decode state %q: %w", key, err)
	}
	return nil
}

func (f *Flow) RedirectURL() string {
	return f.redirectURL
}

// Discard drops everything bound during the flow. Called when the pipeline
// completes or aborts.
func (f *Flow) Discard(ctx context.Context) {
	for _, key := range []string{"state", "code", "data", "user"} {
		f.store.store.Delete(ctx, f.key(key))
	}
}

func (f *Flow) key(key string) string {
	return "authflow:" + f.id + ":" + key
}
