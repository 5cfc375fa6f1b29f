package signing

import (
	"strconv"
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	exp := s.Expiry(30 * time.Minute)
	if exp != now.Add(30*time.Minute).Unix() {
		t.Fatalf("unexpected expiry %d", exp)
	}
	sig := s.Sign("hormigones/abc/1-plano.pdf", exp)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	expires := strconv.FormatInt(exp, 10)
	if !s.Validate("hormigones/abc/1-plano.pdf", expires, sig) {
		t.Fatalf("expected signature to validate")
	}
	if s.Validate("hormigones/abc/2-otro.pdf", expires, sig) {
		t.Fatalf("expected validation to fail for wrong key")
	}
	if s.Validate("hormigones/abc/1-plano.pdf", "42", sig) {
		t.Fatalf("expected validation to fail for wrong expiry")
	}
	if s.Validate("hormigones/abc/1-plano.pdf", "soon", sig) {
		t.Fatalf("expected validation to fail for malformed expiry")
	}

	now = now.Add(31 * time.Minute)
	if s.Validate("hormigones/abc/1-plano.pdf", expires, sig) {
		t.Fatalf("expected validation to fail after expiry")
	}
}

func TestSignerSecretMatters(t *testing.T) {
	a := NewSigner([]byte("a")).Sign("k", 1)
	b := NewSigner([]byte("b")).Sign("k", 1)
	if a == b {
		t.Fatal("different secrets produced the same signature")
	}
}
