package authorize

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return port
}

func TestAuthorize_NonLoopbackSkipsListener(t *testing.T) {

	f := New("https://example.com/callback", time.Second)
	var out bytes.Buffer
	f.SetOutput(&out)

	outcome, err := f.Authorize(context.Background(), "https://bank.example/authorize")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Contains(t, out.String(), "https://bank.example/authorize")
}

func TestAuthorize_CompletedViaRedirect(t *testing.T) {

	port := freePort(t)
	redirect := "http://127.0.0.1:" + port + "/callback"

	f := New(redirect, 5*time.Second)
	f.showQR = false
	var out bytes.Buffer
	f.SetOutput(&out)

	done := make(chan Outcome, 1)
	go func() {
		outcome, err := f.Authorize(context.Background(), "https://bank.example/authorize")
		assert.NoError(t, err)
		done <- outcome
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(redirect + "?payment_id=p-1")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, OutcomeCompleted, <-done)
}

// redirectOnPrint fires the provider redirect the instant the link is
// printed. A user can follow the link as soon as they see it, so the
// callback socket must already be bound at that point.
type redirectOnPrint struct {
	url  string
	once sync.Once
	err  error
}

func (w *redirectOnPrint) Write(p []byte) (int, error) {
	w.once.Do(func() {
		resp, err := http.Get(w.url)
		if err != nil {
			w.err = err
			return
		}
		resp.Body.Close()
	})
	return len(p), nil
}

func TestAuthorize_SocketBoundBeforeLinkShown(t *testing.T) {

	port := freePort(t)
	redirect := "http://127.0.0.1:" + port + "/callback"

	f := New(redirect, 500*time.Millisecond)
	f.showQR = false
	out := &redirectOnPrint{url: redirect + "?payment_id=p-1"}
	f.SetOutput(out)

	outcome, err := f.Authorize(context.Background(), "https://bank.example/authorize")
	require.NoError(t, err)
	require.NoError(t, out.err, "redirect fired at print time must be accepted")
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestAuthorize_Denied(t *testing.T) {

	port := freePort(t)
	redirect := "http://127.0.0.1:" + port + "/callback"

	f := New(redirect, 5*time.Second)
	f.showQR = false
	f.SetOutput(&bytes.Buffer{})

	done := make(chan Outcome, 1)
	go func() {
		outcome, err := f.Authorize(context.Background(), "https://bank.example/authorize")
		assert.NoError(t, err)
		done <- outcome
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(redirect + "?error=access_denied")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, OutcomeDenied, <-done)
}

func TestAuthorize_Timeout(t *testing.T) {

	port := freePort(t)
	f := New("http://127.0.0.1:"+port+"/callback", 50*time.Millisecond)
	f.showQR = false
	f.SetOutput(&bytes.Buffer{})

	outcome, err := f.Authorize(context.Background(), "https://bank.example/authorize")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
}
