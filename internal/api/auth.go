package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/helixir/review-console/internal/observability"
)

// TokenStore persists an OAuth token across console sessions.
type TokenStore interface {
	// Load returns the cached token, or (nil, nil) when none is cached.
	Load() (*oauth2.Token, error)
	// Save replaces the cached token.
	Save(token *oauth2.Token) error
	// Clear removes the cached token.
	Clear() error
}

// FileTokenStore stores the token as a JSON file on an afero filesystem.
type FileTokenStore struct {
	fs   afero.Fs
	path string
}

// NewFileTokenStore creates a token store at the given path.
func NewFileTokenStore(fs afero.Fs, path string) *FileTokenStore {
	return &FileTokenStore{fs: fs, path: path}
}

// Load reads the cached token. A missing file is not an error.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}

// Save writes the token with owner-only permissions.
func (s *FileTokenStore) Save(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// TokenManagerConfig configures a TokenManager.
type TokenManagerConfig struct {
	// TokenURL is the OAuth token endpoint.
	TokenURL string
	// ClientID is the OAuth client identifier.
	ClientID string
	// ClientSecret is the OAuth client secret.
	ClientSecret string
	// Scopes are the OAuth scopes requested on refresh.
	Scopes []string
	// Store optionally persists tokens across sessions.
	Store TokenStore
	// Logger is used for refresh diagnostics.
	Logger zerolog.Logger
	// Metrics records token refresh outcomes. Optional.
	Metrics *observability.Metrics
}

// TokenManager hands out bearer tokens for backend requests. It serves the
// cached token while it is valid, refreshes it via the client-credentials
// grant when it is not, and supports explicit invalidation so a 401 response
// can force a fresh token on the retry.
type TokenManager struct {
	cfg clientcredentials.Config

	store   TokenStore
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenManager creates a token manager. If a store is configured the
// previously persisted token is picked up lazily on first use.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	return &TokenManager{
		cfg: clientcredentials.Config{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
		},
		store:   cfg.Store,
		logger:  cfg.Logger.With().Str("component", "token_manager").Logger(),
		metrics: cfg.Metrics,
	}
}

// Token returns a valid bearer token, refreshing it if needed.
func (m *TokenManager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token.Valid() {
		return m.token, nil
	}

	if m.token == nil && m.store != nil {
		cached, err := m.store.Load()
		if err != nil {
			m.logger.Warn().Err(err).Msg("failed to load cached token, refreshing")
		} else if cached.Valid() {
			m.token = cached
			return m.token, nil
		}
	}

	token, err := m.cfg.TokenSource(ctx).Token()
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordTokenRefresh(false)
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordTokenRefresh(true)
	}
	m.logger.Debug().Time("expiry", token.Expiry).Msg("access token refreshed")

	m.token = token
	if m.store != nil {
		if err := m.store.Save(token); err != nil {
			m.logger.Warn().Err(err).Msg("failed to persist refreshed token")
		}
	}
	return token, nil
}

// Invalidate drops the cached token so the next Token call refreshes. Called
// when the backend rejects a request with 401 despite a locally valid token.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn().Err(err).Msg("failed to clear cached token")
		}
	}
}
