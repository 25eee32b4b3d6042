package callback

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "quickpay.callback")

// ErrTimeout is returned when no redirect arrives before the deadline.
var ErrTimeout = errors.New("no redirect received before deadline")

// Result is the outcome carried by the provider redirect. ErrorCode is
// the value of the "error" query parameter when the user did not complete
// authorization.
type Result struct {
	ErrorCode string
	Query     url.Values
}

func (r *Result) Denied() bool { return r.ErrorCode != "" }

// Listener waits for a single provider redirect on a loopback address.
// It binds once, serves exactly one request matching the redirect path
// and shuts down; it is never left running past Wait.
type Listener struct {
	host string
	path string

	srv     *http.Server
	results chan *Result
}

// New derives the listen address and expected path from the configured
// redirect URI. Only loopback hosts are accepted; anything else is
// infrastructure this process does not run.
func New(redirectURI string) (*Listener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, errors.Wrap(err, "parse redirect URI")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("redirect URI must be http(s), got %q", redirectURI)
	}

	host := u.Hostname()
	ip := net.ParseIP(host)
	if host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, errors.Errorf("redirect URI host %q is not loopback", host)
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return &Listener{host: net.JoinHostPort(host, port), path: path}, nil
}

const ackPage = `<!DOCTYPE html>
<html><head><title>quickpay</title></head>
<body><p>Authorization received. You can return to the terminal.</p></body></html>`

// Start binds the socket and begins serving. It must be called before the
// authorization link is shown to the user, so a redirect arriving right
// after the user follows the link always finds the socket open. Every
// Start must be paired with a Wait, which releases the socket.
func (l *Listener) Start() error {

	ln, err := net.Listen("tcp", l.host)
	if err != nil {
		return errors.Wrap(err, "bind callback listener")
	}

	l.results = make(chan *Result, 1)
	var once sync.Once

	r := chi.NewRouter()
	r.Get(l.path, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(ackPage))
		once.Do(func() {
			l.results <- &Result{ErrorCode: q.Get("error"), Query: q}
		})
	})

	l.srv = &http.Server{Handler: r}
	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Debugf("callback server: %v", err)
		}
	}()

	logger.Debugf("listening for redirect on %s%s", l.host, l.path)
	return nil
}

// Wait blocks until one matching request arrives or the timeout elapses
// and releases the socket on every exit path. Callers that did not Start
// explicitly get the bind here.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) (*Result, error) {

	if l.srv == nil {
		if err := l.Start(); err != nil {
			return nil, err
		}
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.srv.Shutdown(shutdownCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-l.results:
		return res, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
