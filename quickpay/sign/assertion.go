package sign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SignError marks unusable key material or an algorithm the key cannot
// serve.
type SignError struct {
	Err error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("assertion signing: %v", e.Err)
}

func (e *SignError) Unwrap() error { return e.Err }

var methods = map[string]jwt.SigningMethod{
	"ES256": jwt.SigningMethodES256,
	"ES384": jwt.SigningMethodES384,
	"ES512": jwt.SigningMethodES512,
	"RS256": jwt.SigningMethodRS256,
	"RS384": jwt.SigningMethodRS384,
	"RS512": jwt.SigningMethodRS512,
}

var curveByAlg = map[string]elliptic.Curve{
	"ES256": elliptic.P256(),
	"ES384": elliptic.P384(),
	"ES512": elliptic.P521(),
}

// Signer builds signed client assertions for the token endpoint. The
// algorithm is a fixed property of the client identity and must match the
// private key; it is never inferred from the key.
type Signer struct {
	clientID string
	keyID    string
	method   jwt.SigningMethod
	key      crypto.Signer
}

func New(clientID, keyID, algorithm string, key crypto.Signer) (*Signer, error) {

	method, ok := methods[algorithm]
	if !ok {
		return nil, &SignError{Err: errors.Errorf("unsupported signing algorithm %q", algorithm)}
	}

	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		curve, ec := curveByAlg[algorithm]
		if !ec {
			return nil, &SignError{Err: errors.Errorf("algorithm %s requires an RSA key, got ECDSA", algorithm)}
		}
		if k.Curve != curve {
			return nil, &SignError{Err: errors.Errorf("algorithm %s requires curve %s, key uses %s",
				algorithm, curve.Params().Name, k.Curve.Params().Name)}
		}
	case *rsa.PrivateKey:
		if _, ec := curveByAlg[algorithm]; ec {
			return nil, &SignError{Err: errors.Errorf("algorithm %s requires an ECDSA key, got RSA", algorithm)}
		}
	default:
		return nil, &SignError{Err: errors.Errorf("unsupported private key type %T", key)}
	}

	return &Signer{clientID: clientID, keyID: keyID, method: method, key: key}, nil
}

// Assertion returns a signed client assertion for the given audience.
// Claims: iss/sub = client id, a unique jti against replay, iat now and a
// short exp. Pure function of its inputs and the clock.
func (s *Signer) Assertion(audience string, ttl time.Duration) (string, error) {

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.clientID,
		Subject:   s.clientID,
		Audience:  jwt.ClaimStrings{audience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(s.method, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", &SignError{Err: err}
	}
	return signed, nil
}
