package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// LocalServerAuthorizer runs the installed-app flow: it prints the consent URL
// and waits for the provider to redirect the browser to a listener on loopback.
type LocalServerAuthorizer struct {
	Out  io.Writer
	Host string
}

func (a LocalServerAuthorizer) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	host := a.Host
	if host == "" {
		host = "127.0.0.1"
	}
	lsn, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to start redirect listener: %w", err)
	}

	cfg := *config
	cfg.RedirectURL = "http://" + lsn.Addr().String() + "/"
	state := uuid.NewString()

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			select {
			case errs <- fmt.Errorf("authorization denied: %s", e):
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "code is missing", http.StatusBadRequest)
			return
		}
		io.WriteString(w, "Calendar access granted, you can close this window.\n")
		select {
		case codes <- code:
		default:
		}
	})}
	go func() {
		if err := srv.Serve(lsn); !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("redirect listener failed: %v", err)
		}
	}()
	defer srv.Close()

	out := a.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "Open the following link in your browser to grant calendar access:\n%s\n",
		cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errs:
		return nil, err
	case code := <-codes:
		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return token, nil
	}
}

// StaticAuthorizer returns a fixed token. It replaces the interactive flow in test mode.
type StaticAuthorizer struct {
	Token *oauth2.Token
}

func (a StaticAuthorizer) Authorize(_ context.Context, _ *oauth2.Config) (*oauth2.Token, error) {
	if a.Token == nil {
		return nil, errors.New("no static token configured")
	}
	t := *a.Token
	return &t, nil
}
