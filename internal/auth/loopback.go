package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/puffinapp/puffin-sync/internal/common"
)

// loopbackTimeout bounds how long we wait for the browser to come back.
const loopbackTimeout = 5 * time.Minute

const successPage = `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body>
  <h1>Authentication Successful</h1>
  <p>You can close this window and return to Puffin.</p>
</body>
</html>`

const failurePage = `<!DOCTYPE html>
<html>
<head><title>Authentication Failed</title></head>
<body>
  <h1>Authentication Failed</h1>
  <p>Please close this window and try again in Puffin.</p>
</body>
</html>`

// CallbackResult is what the provider sent back to the loopback server.
type CallbackResult struct {
	Code        string
	RedirectURI string
}

// LoopbackFlow runs the browser-based authorization flow: it binds a
// one-shot HTTP callback server on a loopback port, opens the provider's
// consent page in the system browser, and waits for the redirect carrying
// the authorization code.
type LoopbackFlow struct {
	authURLBase string
	scope       string

	// openBrowser is swappable for tests.
	openBrowser func(url string) error
}

func NewLoopbackFlow(authURLBase, scope string) *LoopbackFlow {
	return &LoopbackFlow{
		authURLBase: authURLBase,
		scope:       scope,
		openBrowser: openSystemBrowser,
	}
}

// Authorize returns the authorization code, or an error when the user
// denied access, the state check failed, or the wait timed out.
func (f *LoopbackFlow) Authorize(ctx context.Context, clientID string) (*CallbackResult, error) {
	listener, err := listenLoopback()
	if err != nil {
		return nil, err
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d", port)
	state := common.MakeRandHexString(16)

	authURL, err := f.buildAuthURL(clientID, redirectURI, state)
	if err != nil {
		listener.Close()
		return nil, err
	}

	type callback struct {
		code, state, errParam string
	}
	results := make(chan callback, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cb := callback{code: q.Get("code"), state: q.Get("state"), errParam: q.Get("error")}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if cb.code != "" {
			fmt.Fprint(w, successPage)
		} else {
			fmt.Fprint(w, failurePage)
		}

		select {
		case results <- cb:
		default: // only the first callback counts
		}
	})}

	go func() { _ = server.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := f.openBrowser(authURL); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}

	timer := time.NewTimer(loopbackTimeout)
	defer timer.Stop()

	select {
	case cb := <-results:
		if cb.errParam != "" {
			return nil, fmt.Errorf("authorization denied: %s", cb.errParam)
		}
		if cb.code == "" {
			return nil, errors.New("callback carried no authorization code")
		}
		if cb.state != state {
			return nil, errors.New("state mismatch in authorization callback")
		}
		return &CallbackResult{Code: cb.code, RedirectURI: redirectURI}, nil
	case <-timer.C:
		return nil, errors.New("authorization timed out: no callback received")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *LoopbackFlow) buildAuthURL(clientID, redirectURI, state string) (string, error) {
	u, err := url.Parse(f.authURLBase)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}

	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", f.scope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// listenLoopback binds the first free port in the dynamic/private range.
func listenLoopback() (net.Listener, error) {
	for port := 49152; port < 65535; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return l, nil
		}
	}
	return nil, errors.New("no available loopback port")
}

func openSystemBrowser(rawURL string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", rawURL).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL).Start()
	default:
		return exec.Command("xdg-open", rawURL).Start()
	}
}
