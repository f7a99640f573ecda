package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// generateRSAPEM mirrors the teacher's LoadOrGenerateKeyPair key generation
// (internal/ap/keys.go), PKCS1 private / PKIX public, PEM encoded.
func generateRSAPEM() (priv *rsa.PrivateKey, pub *rsa.PublicKey, secretPEM, publicPEM string, err error) {
	priv, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("generate RSA key: %w", err)
	}
	pub = &priv.PublicKey

	secretBytes := x509.MarshalPKCS1PrivateKey(priv)
	secretBlock := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: secretBytes})

	pubBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("marshal public key: %w", err)
	}
	pubBlock := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	return priv, pub, string(secretBlock), string(pubBlock), nil
}
