package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateShape(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	id := Generate("sk", "fix the thing", "alice", ts, 4, 0)

	if !strings.HasPrefix(id, "sk-") {
		t.Fatalf("id = %q, want sk- prefix", id)
	}
	suffix := strings.TrimPrefix(id, "sk-")
	if len(suffix) != 4 {
		t.Errorf("suffix length = %d", len(suffix))
	}
	for _, r := range suffix {
		if !strings.ContainsRune(base36Alphabet, r) {
			t.Errorf("suffix contains %q outside base36", r)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	ts := time.Now()
	a := Generate("sk", "title", "alice", ts, 4, 0)
	b := Generate("sk", "title", "alice", ts, 4, 0)
	if a != b {
		t.Errorf("same inputs produced %q and %q", a, b)
	}

	c := Generate("sk", "title", "alice", ts, 4, 1)
	if a == c {
		t.Error("different nonce should produce a different id")
	}
}

func TestGenerateLengthClamped(t *testing.T) {
	ts := time.Now()
	short := Generate("sk", "t", "a", ts, 1, 0)
	if len(strings.TrimPrefix(short, "sk-")) != MinLength {
		t.Errorf("length below minimum not clamped: %q", short)
	}
	long := Generate("sk", "t", "a", ts, 99, 0)
	if len(strings.TrimPrefix(long, "sk-")) != MaxLength {
		t.Errorf("length above maximum not clamped: %q", long)
	}
}

func TestEncodeBase36Padding(t *testing.T) {
	if got := EncodeBase36([]byte{0}, 4); got != "0000" {
		t.Errorf("zero bytes = %q", got)
	}
	if got := EncodeBase36([]byte{0xff, 0xff, 0xff, 0xff, 0xff}, 4); len(got) != 4 {
		t.Errorf("overflow not truncated: %q", got)
	}
}

func TestValidatePrefix(t *testing.T) {
	if err := ValidatePrefix("sk-ab12", "sk"); err != nil {
		t.Errorf("valid prefix rejected: %v", err)
	}
	if err := ValidatePrefix("other-ab12", "sk"); err == nil {
		t.Error("wrong prefix accepted")
	}
	if err := ValidatePrefix("skab12", "sk"); err == nil {
		t.Error("missing separator accepted")
	}
}
