package authorize

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/go-faster/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alapierre/go-quickpay/png"
	"github.com/alapierre/go-quickpay/quickpay/callback"
)

var logger = log.WithField("component", "quickpay.authorize")

// Outcome of the user-facing authorization step.
type Outcome int

const (
	// OutcomeCompleted means the user finished the bank's authorization
	// step (or the redirect lands outside this process and the real
	// outcome must be observed by polling).
	OutcomeCompleted Outcome = iota
	// OutcomeDenied means the redirect reported an explicit user denial.
	OutcomeDenied
	// OutcomeTimedOut means no redirect arrived within the wait bound.
	OutcomeTimedOut
)

// Flow steers the end user through the bank authorization link. When the
// configured redirect URI points at loopback it also captures the
// provider redirect locally.
type Flow struct {
	redirectURI string
	timeout     time.Duration
	out         io.Writer
	showQR      bool
}

func New(redirectURI string, timeout time.Duration) *Flow {
	return &Flow{
		redirectURI: redirectURI,
		timeout:     timeout,
		out:         os.Stdout,
		showQR:      true,
	}
}

// SetOutput redirects user-facing printing, for tests.
func (f *Flow) SetOutput(w io.Writer) { f.out = w }

// Authorize presents the authorization link and waits for the outcome.
// The callback socket is bound before the link is shown: once the user
// can follow the link, the redirect must already have somewhere to land.
func (f *Flow) Authorize(ctx context.Context, authorizationURI string) (Outcome, error) {

	var listener *callback.Listener
	if loopback(f.redirectURI) {
		l, err := callback.New(f.redirectURI)
		if err != nil {
			return OutcomeCompleted, errors.Wrap(err, "callback listener")
		}
		if err := l.Start(); err != nil {
			return OutcomeCompleted, err
		}
		listener = l
	}

	fmt.Fprintf(f.out, "Authorisation link:\n%s\n\n", authorizationURI)

	if f.showQR {
		if code, err := png.Terminal(authorizationURI); err == nil {
			fmt.Fprintln(f.out, code)
		} else {
			logger.Debugf("QR rendering skipped: %v", err)
		}
	}

	if listener == nil {
		logger.Debug("redirect URI is not local, outcome will come from polling")
		return OutcomeCompleted, nil
	}

	fmt.Fprintln(f.out, "Waiting for the bank to redirect back...")

	res, err := listener.Wait(ctx, f.timeout)
	switch {
	case errors.Is(err, callback.ErrTimeout):
		return OutcomeTimedOut, nil
	case err != nil:
		return OutcomeCompleted, err
	case res.Denied():
		logger.Debugf("authorization denied: %s", res.ErrorCode)
		return OutcomeDenied, nil
	default:
		return OutcomeCompleted, nil
	}
}

func loopback(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
