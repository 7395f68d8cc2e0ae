// Package testutil provides shared helpers for gateway tests: RSA signing
// keys, JWKS endpoint stubs and bearer token builders.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningKey is an RSA key pair with the kid it is published under.
type SigningKey struct {
	Key *rsa.PrivateKey
	Kid string
}

// NewSigningKey generates a 2048-bit RSA signing key.
func NewSigningKey(t *testing.T, kid string) SigningKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return SigningKey{Key: key, Kid: kid}
}

// JWKSDocument renders the public halves of the given keys as a JWKS JSON
// document.
func JWKSDocument(t *testing.T, keys ...SigningKey) []byte {
	t.Helper()

	type jwk struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Use string `json:"use"`
		Alg string `json:"alg"`
		N   string `json:"n"`
		E   string `json:"e"`
	}

	doc := struct {
		Keys []jwk `json:"keys"`
	}{}
	for _, k := range keys {
		pub := k.Key.Public().(*rsa.PublicKey)
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: k.Kid,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal JWKS document: %v", err)
	}
	return data
}

// JWKSServer starts an httptest server publishing the given keys as a
// JWKS endpoint and counting requests. The server is shut down when the
// test completes.
type JWKSServer struct {
	*httptest.Server
	hits chan struct{}
}

// NewJWKSServer starts a JWKS stub for the given keys.
func NewJWKSServer(t *testing.T, keys ...SigningKey) *JWKSServer {
	t.Helper()

	doc := JWKSDocument(t, keys...)
	hits := make(chan struct{}, 1024)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits <- struct{}{}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)

	return &JWKSServer{Server: srv, hits: hits}
}

// Hits returns the number of fetches the server has handled so far.
func (s *JWKSServer) Hits() int {
	n := 0
	for {
		select {
		case <-s.hits:
			n++
		default:
			return n
		}
	}
}

// SignToken creates an RS256-signed token with the given claims and the
// key's kid in the header.
func SignToken(t *testing.T, key SigningKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.Kid

	signed, err := token.SignedString(key.Key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// UnsignedToken creates a token with the unsigned "none" algorithm. The
// validator must reject it regardless of its claims.
func UnsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to encode unsigned token: %v", err)
	}
	return signed
}

// StandardClaims returns a claim set valid for the next hour with the
// given issuer, audience and subject. Callers override or extend fields
// as needed.
func StandardClaims(issuer, audience, subject string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss": issuer,
		"aud": audience,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}
