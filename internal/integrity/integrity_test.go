package integrity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestSignDeterministic(t *testing.T) {
	s := NewSigner("salt")
	data := []byte(`{"money":100}`)
	if s.Sign(data) != s.Sign(data) {
		t.Fatalf("signature not deterministic")
	}
	if s.Sign(data) == s.Sign([]byte(`{"money":101}`)) {
		t.Fatalf("different payloads share a signature")
	}
	if s.Sign(data) == NewSigner("other").Sign(data) {
		t.Fatalf("different salts share a signature")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := NewSigner("")
	raw, err := s.Seal(map[string]any{"money": 42.0, "credits": 3})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	data, legacy, err := s.Open(raw)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if legacy {
		t.Fatalf("sealed record reported as legacy")
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if got["money"] != 42.0 {
		t.Fatalf("payload lost: %v", got)
	}
}

func TestOpenDetectsMutation(t *testing.T) {
	s := NewSigner("")
	raw, err := s.Seal(map[string]any{"money": 42.0})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	edited := bytes.Replace(raw, []byte("42"), []byte("999999"), 1)
	if _, _, err := s.Open(edited); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestOpenAcceptsLegacyBareState(t *testing.T) {
	s := NewSigner("")
	raw := []byte(`{"money":5,"credits":0}`)
	data, legacy, err := s.Open(raw)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	if !legacy {
		t.Fatalf("bare state not flagged legacy")
	}
	if !bytes.Equal(data, raw) {
		t.Fatalf("legacy payload altered")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	s := NewSigner("")
	if _, _, err := s.Open([]byte("not json at all")); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

// The signature must stay a base64 wrapper around "<int32 decimal>SIG" so
// saves written by older clients keep verifying.
func TestSignatureShape(t *testing.T) {
	s := NewSigner("salt")
	sig := s.Sign([]byte(`{"a":1}`))
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("signature not base64: %v", err)
	}
	body := string(raw)
	if !strings.HasSuffix(body, "SIG") {
		t.Fatalf("signature body %q lacks SIG suffix", body)
	}
	if _, err := strconv.ParseInt(strings.TrimSuffix(body, "SIG"), 10, 32); err != nil {
		t.Fatalf("signature body %q is not an int32: %v", body, err)
	}
}
