package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/go-faster/errors"
	"github.com/youmark/pkcs8"
)

// SignerFromFile loads a private key from a PEM file and returns a crypto.Signer.
func SignerFromFile(path string, password []byte) (crypto.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	return SignerFromPEM(b, password)
}

// SignerFromPEM loads the first usable private key block found in pemBytes.
// Supported blocks: PRIVATE KEY (PKCS#8), EC PRIVATE KEY, RSA PRIVATE KEY
// and ENCRYPTED PRIVATE KEY (requires a password).
func SignerFromPEM(pemBytes []byte, password []byte) (crypto.Signer, error) {

	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}

		switch block.Type {
		case "PRIVATE KEY":
			keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse PKCS#8 private key")
			}
			return asSigner(keyAny)

		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse EC private key")
			}
			return key, nil

		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse PKCS#1 private key")
			}
			return key, nil

		case "ENCRYPTED PRIVATE KEY":
			if len(password) == 0 {
				return nil, errors.New("password is required for ENCRYPTED PRIVATE KEY")
			}
			keyAny, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
			if err != nil {
				return nil, errors.Wrap(err, "decrypt PKCS#8 encrypted private key")
			}
			return asSigner(keyAny)
		}
	}

	return nil, errors.New("no private key block found in PEM")
}

func asSigner(keyAny any) (crypto.Signer, error) {
	switch k := keyAny.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	default:
		return nil, errors.Errorf("unsupported key type: %T (expected RSA or ECDSA)", keyAny)
	}
}
