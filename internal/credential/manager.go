package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

var ErrAuth = errors.New("calendar credential is not available")

const defaultRequestTimeout = 10 * time.Second

// Authorizer obtains a new token when there is no usable stored credential.
type Authorizer interface {
	Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)
}

type Config struct {
	// CredentialsFile is the client secret downloaded from the Google console.
	// It is read only when a new authorization is required.
	CredentialsFile string
	// ClientID and ClientSecret take precedence over CredentialsFile when both are set.
	ClientID     string
	ClientSecret string
	TokenFile    string
	// RequestTimeout limits every call to the calendar and token endpoints.
	RequestTimeout time.Duration
	// Endpoint overrides the calendar API base URL.
	Endpoint string
}

// storedCredential is the persisted form of the credential. It keeps the client
// registration so a refresh doesn't need the client secret file.
type storedCredential struct {
	ClientID     string        `json:"client_id"`
	ClientSecret string        `json:"client_secret"`
	AuthURL      string        `json:"auth_url"`
	TokenURL     string        `json:"token_url"`
	Token        *oauth2.Token `json:"token"`
}

func (c *storedCredential) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: c.AuthURL, TokenURL: c.TokenURL},
		Scopes:       []string{calendar.CalendarEventsScope},
	}
}

// Manager owns the calendar credential: it loads it, refreshes or re-authorizes
// when needed, persists it back, and hands out authenticated calendar clients.
type Manager struct {
	mu         sync.Mutex
	config     Config
	authorizer Authorizer
}

func NewManager(config Config, authorizer Authorizer) *Manager {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	return &Manager{config: config, authorizer: authorizer}
}

// Client returns a calendar client bound to a valid credential.
// Errors wrap ErrAuth.
func (m *Manager) Client(ctx context.Context) (*calendar.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: m.config.RequestTimeout})
	cred, err := m.credential(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	client := oauth2.NewClient(ctx, cred.oauthConfig().TokenSource(ctx, cred.Token))
	client.Timeout = m.config.RequestTimeout
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if m.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(m.config.Endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create calendar service: %w", ErrAuth, err)
	}
	return svc, nil
}

func (m *Manager) credential(ctx context.Context) (*storedCredential, error) {
	cred, err := m.load()
	switch {
	case err == nil && cred.Token.Valid():
		return cred, nil
	case err == nil && cred.Token.RefreshToken != "":
		log.Debug("refreshing calendar token")
		token, err := cred.oauthConfig().TokenSource(ctx, expired(cred.Token)).Token()
		if err != nil {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}
		cred.Token = token
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		log.Warnf("stored calendar credential is unusable, authorizing again: %v", err)
		fallthrough
	default:
		cred, err = m.authorize(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := m.save(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (m *Manager) authorize(ctx context.Context) (*storedCredential, error) {
	if m.authorizer == nil {
		return nil, errors.New("no stored credential and interactive authorization is disabled")
	}
	config, err := m.clientConfig()
	if err != nil {
		return nil, err
	}
	log.Info("authorizing calendar access")
	token, err := m.authorizer.Authorize(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return &storedCredential{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		AuthURL:      config.Endpoint.AuthURL,
		TokenURL:     config.Endpoint.TokenURL,
		Token:        token,
	}, nil
}

func (m *Manager) clientConfig() (*oauth2.Config, error) {
	if m.config.ClientID != "" && m.config.ClientSecret != "" {
		return &oauth2.Config{
			ClientID:     m.config.ClientID,
			ClientSecret: m.config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		}, nil
	}

	b, err := os.ReadFile(m.config.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %q: %w", m.config.CredentialsFile, err)
	}
	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}
	return config, nil
}

func (m *Manager) load() (*storedCredential, error) {
	b, err := os.ReadFile(m.config.TokenFile)
	if err != nil {
		return nil, err
	}
	cred := &storedCredential{}
	if err := json.Unmarshal(b, cred); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if cred.Token == nil {
		return nil, errors.New("token file has no token")
	}
	return cred, nil
}

func (m *Manager) save(cred *storedCredential) error {
	b, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	dir := filepath.Dir(m.config.TokenFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.config.TokenFile); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// expired returns a copy of the token that oauth2 will refresh unconditionally.
func expired(t *oauth2.Token) *oauth2.Token {
	c := *t
	c.AccessToken = ""
	return &c
}
