package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// helper: sign a JWT with the given method and key, merging claims with default exp.
func signJWT(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign JWT: %v", err)
	}
	return s
}

// helper: write PEM-encoded key to a temp file.
func writePEM(t *testing.T, dir, name, typ string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: typ, Bytes: der}); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestJWT_HMAC_Valid(t *testing.T) {
	secret := "my-test-secret-key-1234567890"
	v, err := NewJWTVerifier(JWTConfig{SigningKey: secret})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub":   "account-1",
		"email": "alice@example.com",
	})

	id, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.ID != "account-1" {
		t.Errorf("expected account-1, got %s", id.ID)
	}
	if id.Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %s", id.Email)
	}
}

func TestJWT_RSA_Valid(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pemPath := writePEM(t, dir, "rsa.pub", "PUBLIC KEY", pubDER)

	v, err := NewJWTVerifier(JWTConfig{SigningKey: pemPath})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodRS256, privKey, jwt.MapClaims{
		"sub": "account-2",
	})

	id, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.ID != "account-2" {
		t.Errorf("expected account-2, got %s", id.ID)
	}
}

func TestJWT_ECDSA_Valid(t *testing.T) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pemPath := writePEM(t, dir, "ec.pub", "PUBLIC KEY", pubDER)

	v, err := NewJWTVerifier(JWTConfig{SigningKey: pemPath})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodES256, privKey, jwt.MapClaims{
		"sub": "account-3",
	})

	id, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.ID != "account-3" {
		t.Errorf("expected account-3, got %s", id.ID)
	}
}

func TestJWT_ExpiredToken(t *testing.T) {
	secret := "test-secret"
	v, err := NewJWTVerifier(JWTConfig{SigningKey: secret})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "account-1",
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	_, err = v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestJWT_MissingExp(t *testing.T) {
	secret := "test-secret"
	v, err := NewJWTVerifier(JWTConfig{SigningKey: secret})
	if err != nil {
		t.Fatal(err)
	}

	// Sign without exp claim.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "account-1"})
	tok, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	_, err = v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing exp, got %v", err)
	}
}

func TestJWT_WrongSignature(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{SigningKey: "correct-key"})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte("wrong-key"), jwt.MapClaims{
		"sub": "account-1",
	})

	_, err = v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong signature, got %v", err)
	}
}

func TestJWT_WrongAudience(t *testing.T) {
	secret := "test-secret"
	v, err := NewJWTVerifier(JWTConfig{
		SigningKey: secret,
		Audience:   "expected-audience",
	})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "account-1",
		"aud": "wrong-audience",
	})

	_, err = v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong audience, got %v", err)
	}
}

func TestJWT_WrongIssuer(t *testing.T) {
	secret := "test-secret"
	v, err := NewJWTVerifier(JWTConfig{
		SigningKey: secret,
		Issuer:     "expected-issuer",
	})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "account-1",
		"iss": "wrong-issuer",
	})

	_, err = v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestJWT_MissingSub(t *testing.T) {
	secret := "test-secret"
	v, err := NewJWTVerifier(JWTConfig{SigningKey: secret})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"name": "no id here",
	})

	_, err = v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing sub, got %v", err)
	}
}

func TestJWT_CustomEmailClaim(t *testing.T) {
	secret := "test-secret"
	v, err := NewJWTVerifier(JWTConfig{
		SigningKey: secret,
		EmailClaim: "preferred_email",
	})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub":             "account-1",
		"preferred_email": "user@example.com",
	})

	id, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Email != "user@example.com" {
		t.Errorf("expected user@example.com, got %s", id.Email)
	}
}

func TestJWT_AlgorithmMismatch_HMAC_vs_RSA(t *testing.T) {
	// Verifier configured for RSA must reject HMAC-signed tokens.
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pemPath := writePEM(t, dir, "rsa.pub", "PUBLIC KEY", pubDER)

	v, err := NewJWTVerifier(JWTConfig{SigningKey: pemPath})
	if err != nil {
		t.Fatal(err)
	}

	tok := signJWT(t, jwt.SigningMethodHS256, []byte("some-secret"), jwt.MapClaims{
		"sub": "account-1",
	})

	_, err = v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for algorithm mismatch, got %v", err)
	}
}

func TestJWT_InvalidPEMFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(path, []byte("not a valid PEM file"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewJWTVerifier(JWTConfig{SigningKey: path})
	if err == nil {
		t.Fatal("expected error for invalid PEM file")
	}
}

func TestJWT_EmptySigningKey(t *testing.T) {
	_, err := NewJWTVerifier(JWTConfig{SigningKey: ""})
	if err == nil {
		t.Fatal("expected error for empty signing key")
	}
}

func TestJWT_EmptyToken(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{SigningKey: "test-secret"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = v.Verify(context.Background(), "")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}
