package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func newCodec(t *testing.T, secret string) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec(secret, "HS256")
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	return c
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "super-secret")

	tok, err := c.Encode("alice")
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if tok.Subject != "alice" || tok.EncodedToken == "" {
		t.Fatalf("unexpected token: %+v", tok)
	}

	got, err := c.Decode("Bearer " + tok.EncodedToken)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !got.Equal(tok) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, tok)
	}
}

func TestEncode_StampsIssuedAt(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "k")
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)
	c.now = func() time.Time { return fixed }

	tok, err := c.Encode("bob")
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if !tok.IssuedAt.Equal(fixed.Truncate(time.Second)) {
		t.Fatalf("issued_at = %v, want %v", tok.IssuedAt, fixed.Truncate(time.Second))
	}
}

func TestDecode_BearerNotFound(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "k")
	for _, header := range []string{"", "Bearer", "   ", "sometoken"} {
		_, err := c.Decode(header)
		if !errors.Is(err, common.ErrorUnauthorized) {
			t.Fatalf("header %q: want ErrorUnauthorized, got %v", header, err)
		}
		if !IsBearerNotFound(err) {
			t.Fatalf("header %q: want bearer not found, got %v", header, err)
		}
	}
}

func TestDecode_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := newCodec(t, "right-secret").Encode("u2")
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	_, err = newCodec(t, "wrong-secret").Decode("Bearer " + tok.EncodedToken)
	if !errors.Is(err, common.ErrorUnprocessable) {
		t.Fatalf("want ErrorUnprocessable, got %v", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	_, err := newCodec(t, "k").Decode("Bearer not.a.jwt")
	if !errors.Is(err, common.ErrorUnprocessable) {
		t.Fatalf("want ErrorUnprocessable, got %v", err)
	}
}

func TestDecode_WrongAlgorithm(t *testing.T) {
	t.Parallel()

	hs512, err := NewTokenCodec("k", "HS512")
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	tok, err := hs512.Encode("carol")
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	_, err = newCodec(t, "k").Decode("Bearer " + tok.EncodedToken)
	if !errors.Is(err, common.ErrorUnprocessable) {
		t.Fatalf("want ErrorUnprocessable, got %v", err)
	}
}

func TestDecode_NoneAlgorithmRejected(t *testing.T) {
	t.Parallel()

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "mallory",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}

	_, err = newCodec(t, "k").Decode("Bearer " + raw)
	if !errors.Is(err, common.ErrorUnprocessable) {
		t.Fatalf("want ErrorUnprocessable, got %v", err)
	}
}

func TestDecode_MissingSubject(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	})
	raw, err := tok.SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}

	_, err = newCodec(t, "k").Decode("Bearer " + raw)
	if !errors.Is(err, common.ErrorUnprocessable) {
		t.Fatalf("want ErrorUnprocessable, got %v", err)
	}
}

func TestNewTokenCodec_Config(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		secret string
		alg    string
		ok     bool
	}{
		{"hs256", "k", "HS256", true},
		{"hs384", "k", "HS384", true},
		{"empty secret", "", "HS256", false},
		{"empty alg", "k", "", false},
		{"rsa", "k", "RS256", false},
		{"unknown", "k", "XX999", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenCodec(tt.secret, tt.alg)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, common.ErrorConfig) {
				t.Fatalf("want ErrorConfig, got %v", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"  Bearer   abc", "abc", true},
		{"Bearer a b", "a b", true},
		{"Token abc", "abc", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
