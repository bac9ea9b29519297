package uuid

import (
	"strings"
	"testing"
	"time"
)

func TestNewV7_Format(t *testing.T) {
	t.Parallel()

	u := NewV7()
	s := u.String()

	if len(s) != 36 {
		t.Fatalf("String() length = %d, want 36 (%q)", len(s), s)
	}
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		t.Fatalf("String() = %q, want 5 dash-separated groups", s)
	}

	// Version nibble must be 7, variant bits must be 10.
	if u[6]>>4 != 0x7 {
		t.Errorf("version nibble = %x, want 7", u[6]>>4)
	}
	if u[8]>>6 != 0x2 {
		t.Errorf("variant bits = %b, want 10", u[8]>>6)
	}
}

func TestNewV7_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		s := NewV7().String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate UUID generated: %s", s)
		}
		seen[s] = struct{}{}
	}
}

func TestNewV7_TimestampOrdering(t *testing.T) {
	t.Parallel()

	a := NewV7()
	time.Sleep(2 * time.Millisecond)
	b := NewV7()

	if a.String() >= b.String() {
		t.Errorf("UUIDs not time-ordered: %s >= %s", a, b)
	}
}
