package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zdunecki/matchfund/pkg/wizard"
)

var (
	errUnknownKeyID  = errors.New("unknown key id")
	errNotSecure     = errors.New("field does not accept encrypted values")
	errBadCiphertext = errors.New("invalid ciphertext encoding")
	errDecrypt       = errors.New("decrypt failed")
)

// keyring holds the ephemeral RSA key browsers use to encrypt secure field values.
type keyring struct {
	keyID string
	priv  *rsa.PrivateKey
}

func newKeyring(bits int) (*keyring, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &keyring{keyID: "k-" + uuid.NewString(), priv: priv}, nil
}

// publicKey returns the key id and the base64 SPKI DER encoding of the public key.
func (k *keyring) publicKey() (keyID string, spkiB64 string, err error) {
	spkiDER, err := x509.MarshalPKIXPublicKey(&k.priv.PublicKey)
	if err != nil {
		return "", "", err
	}
	return k.keyID, base64.StdEncoding.EncodeToString(spkiDER), nil
}

// decrypt expects base64 RSA-OAEP(SHA-256) ciphertext. An empty keyID skips the key check.
func (k *keyring) decrypt(ciphertextB64, keyID string) (string, error) {
	if keyID != "" && keyID != k.keyID {
		return "", errUnknownKeyID
	}
	ct, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", errBadCiphertext
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, k.priv, ct, nil)
	if err != nil {
		return "", errDecrypt
	}
	return string(pt), nil
}

// encrypt is the browser side of decrypt. Tests use it.
func (k *keyring) encrypt(plain string) (string, error) {
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &k.priv.PublicKey, []byte(plain), nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

type securePayload struct {
	Ciphertext string `json:"ciphertext"`
	KeyID      string `json:"keyId"`
}

// decryptSecureValues decrypts values sent for fields the flow marks Secure. Encrypted values
// for any other field are rejected.
func (k *keyring) decryptSecureValues(flow *wizard.Flow, values map[string]securePayload) (map[string]any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	secure := make(map[string]bool)
	for _, step := range flow.Steps {
		for _, f := range step.Fields {
			if f.Secure {
				secure[f.Name] = true
			}
		}
	}

	out := make(map[string]any, len(values))
	for name, p := range values {
		if !secure[name] {
			return nil, fmt.Errorf("%s: %w", name, errNotSecure)
		}
		if p.Ciphertext == "" {
			out[name] = ""
			continue
		}
		plain, err := k.decrypt(p.Ciphertext, p.KeyID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = plain
	}
	return out, nil
}
