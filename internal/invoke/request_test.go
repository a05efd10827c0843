package invoke

import (
	"errors"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	a, err := NewRequest("word_count", map[string]any{"text": "hello", "lang": "en"})
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	b, err := NewRequest("word_count", map[string]any{"lang": "en", "text": "hello"})
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprints differ for equal params: %s vs %s",
			a.Fingerprint(), b.Fingerprint())
	}
}

func TestFingerprintNestedMaps(t *testing.T) {
	a, _ := NewRequest("t", map[string]any{"opts": map[string]any{"x": 1, "y": 2}})
	b, _ := NewRequest("t", map[string]any{"opts": map[string]any{"y": 2, "x": 1}})
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("nested map key order changed the fingerprint")
	}
}

func TestFingerprintDistinguishes(t *testing.T) {
	a, _ := NewRequest("t", map[string]any{"x": 1})
	b, _ := NewRequest("t", map[string]any{"x": 2})
	c, _ := NewRequest("u", map[string]any{"x": 1})
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("different params produced equal fingerprints")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("different tools produced equal fingerprints")
	}
}

func TestNewRequestValidation(t *testing.T) {
	if _, err := NewRequest("", nil); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("empty tool err = %v, want ErrInvalidParameters", err)
	}
	if _, err := NewRequest("t", map[string]any{"f": func() {}}); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("unserializable param err = %v, want ErrInvalidParameters", err)
	}
}

func TestNilParams(t *testing.T) {
	r, err := NewRequest("t", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if string(r.RawParams()) != "{}" {
		t.Fatalf("raw params = %s, want {}", r.RawParams())
	}
}
