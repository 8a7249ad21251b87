package providers

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Credentials is the shape a SecretStore returns for one secretId: the
// active key plus, if a rotation is in flight, the key it replaced.
// Adapters retry exactly once against Previous on an AUTH failure, then
// discard it.
type Credentials struct {
	Current  string
	Previous string
}

// SecretStore is the external secret-fetching collaborator the router contract lists
// as out of scope; it is specified here only to the extent an adapter
// touches it.
type SecretStore interface {
	GetSecret(ctx context.Context, secretID string) (Credentials, error)
}

// EnvSecretStore resolves a secret from the environment variable named by
// secretID, for local/dev deployments without a real secret manager.
type EnvSecretStore struct{}

// GetSecret implements SecretStore.
func (EnvSecretStore) GetSecret(_ context.Context, secretID string) (Credentials, error) {
	v := os.Getenv(secretID)
	if v == "" {
		return Credentials{}, fmt.Errorf("providers: secret %q is not set", secretID)
	}
	return Credentials{Current: v}, nil
}

// credentialLoader performs the single-flight secret fetch the router contract
// describes: the first caller triggers SecretStore.GetSecret, concurrent
// callers await the same outcome via a shared promise, and the promise is
// cleared once it settles. It is the only piece of shared mutable state
// within one adapter instance and is protected by a plain mutex rather than
// a reentrant callback.
type credentialLoader struct {
	mu       sync.Mutex
	store    SecretStore
	secretID string
	inflight chan struct{}
	creds    Credentials
	err      error
	loaded   bool
}

func newCredentialLoader(store SecretStore, secretID string) *credentialLoader {
	return &credentialLoader{store: store, secretID: secretID}
}

// load returns the adapter's current credentials, fetching them at most
// once per generation (a generation ends when forceReload is called).
func (c *credentialLoader) load(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	if c.loaded {
		creds, err := c.creds, c.err
		c.mu.Unlock()
		return creds, err
	}
	if c.inflight != nil {
		ch := c.inflight
		c.mu.Unlock()
		select {
		case <-ch:
			c.mu.Lock()
			creds, err := c.creds, c.err
			c.mu.Unlock()
			return creds, err
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		}
	}
	ch := make(chan struct{})
	c.inflight = ch
	c.mu.Unlock()

	creds, err := c.store.GetSecret(ctx, c.secretID)

	c.mu.Lock()
	c.creds, c.err = creds, err
	c.loaded = err == nil
	c.inflight = nil
	c.mu.Unlock()
	close(ch)

	return creds, err
}

// discardPrevious clears the rotated-out credential after a single retry
// against it.
func (c *credentialLoader) discardPrevious() {
	c.mu.Lock()
	c.creds.Previous = ""
	c.mu.Unlock()
}

// forceReload invalidates the cached outcome so the next load() re-fetches.
func (c *credentialLoader) forceReload() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
