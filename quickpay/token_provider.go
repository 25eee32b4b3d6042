package quickpay

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/alapierre/go-quickpay/quickpay/api"
	"github.com/alapierre/go-quickpay/quickpay/model"
)

const (
	tokenEndpoint      = "/connect/token"
	assertionGrantType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionTTL       = 5 * time.Minute
)

// AssertionSource produces a signed client assertion for an audience.
type AssertionSource interface {
	Assertion(audience string, ttl time.Duration) (string, error)
}

// TokenProvider exchanges client credentials for an access token and
// caches it until shortly before expiry. Concurrent callers share a
// single in-flight refresh.
type TokenProvider struct {
	client       *api.Client
	signer       AssertionSource // nil means client-secret grant
	clientID     string
	clientSecret string
	scope        string

	mu          sync.Mutex
	accessToken string
	accessExp   time.Time

	// refresh this long before the token actually expires
	refreshSkew time.Duration
}

func NewTokenProvider(client *api.Client, signer AssertionSource, clientID, clientSecret, scope string) *TokenProvider {
	return &TokenProvider{
		client:       client,
		signer:       signer,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		refreshSkew:  30 * time.Second,
	}
}

// Token returns a valid access token, refreshing it when the cached one
// is missing or about to expire. The cache entry is replaced wholesale.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {

	// fast path without holding the lock through the exchange
	if token, ok := p.currentIfValid(); ok {
		return token, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// double check after acquiring the lock: another caller may have
	// refreshed while this one waited
	if token, ok := p.currentIfValidLocked(); ok {
		return token, nil
	}

	return p.refreshLocked(ctx)
}

func (p *TokenProvider) currentIfValid() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentIfValidLocked()
}

func (p *TokenProvider) currentIfValidLocked() (string, bool) {
	if p.accessToken == "" {
		return "", false
	}
	if p.accessExp.IsZero() {
		return "", false
	}
	now := time.Now().UTC()
	if p.accessExp.Sub(now) <= p.refreshSkew {
		return "", false
	}
	return p.accessToken, true
}

func (p *TokenProvider) refreshLocked(ctx context.Context) (string, error) {

	logger.Debug("TokenProvider: requesting new access token")

	form := map[string]string{
		"grant_type": "client_credentials",
		"client_id":  p.clientID,
		"scope":      p.scope,
	}

	if p.signer != nil {
		audience := p.client.BaseURL() + tokenEndpoint
		assertion, err := p.signer.Assertion(audience, assertionTTL)
		if err != nil {
			return "", err
		}
		form["client_assertion_type"] = assertionGrantType
		form["client_assertion"] = assertion
	} else {
		form["client_secret"] = p.clientSecret
	}

	var res model.TokenResponse
	if err := p.client.PostForm(ctx, tokenEndpoint, form, &res); err != nil {
		var re *api.RequestError
		if errors.As(err, &re) && re.StatusCode >= 400 && re.StatusCode < 500 {
			return "", &AuthError{Status: re.StatusCode, Body: re.Body}
		}
		return "", errors.Wrap(err, "token exchange")
	}

	if res.AccessToken == "" {
		return "", errors.New("token endpoint returned an empty access token")
	}

	p.accessToken = res.AccessToken
	p.accessExp = time.Now().UTC().Add(time.Duration(res.ExpiresIn) * time.Second)

	logger.Debugf("TokenProvider: token refreshed, valid until %s", p.accessExp.Format(time.RFC3339))
	return p.accessToken, nil
}
