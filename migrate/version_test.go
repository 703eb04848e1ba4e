package migrate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.3", "1.0.10", -1},
		{"1.0.10", "1.0.3", 1},
		{"1.0", "1.0.0", 0},
		{"1.0.0.0", "1", 0},
		{"1.0.0.1", "1.0.0", 1},
		{"0.0.0", "1.0.0", -1},
		{"2", "1.99.99", 1},
		{"01.2", "1.2", 0},
		{" 1.0.1 ", "1.0.1", 0},
	}

	for _, tt := range tests {
		got, err := CompareVersions(tt.a, tt.b)
		if err != nil {
			t.Fatalf("CompareVersions(%q, %q) error: %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Fatalf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	got, err := ParseVersion("1.0.3")
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	if diff := cmp.Diff([]uint64{1, 0, 3}, got); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVersion_Malformed(t *testing.T) {
	for _, in := range []string{"", "   ", "1..0", "1.0.", ".1", "v1.0.0", "1.0.0-rc1", "1.-2", "1.+2", "a.b.c", "99999999999999999999"} {
		_, err := ParseVersion(in)
		var perr *VersionParseError
		if !errors.As(err, &perr) {
			t.Fatalf("ParseVersion(%q) error = %v, want *VersionParseError", in, err)
		}
		if perr.Value != in {
			t.Fatalf("ParseVersion(%q) reported value %q", in, perr.Value)
		}
	}
}

func TestCompareVersions_PropagatesParseError(t *testing.T) {
	if _, err := CompareVersions("1.0.0", "1.x"); err == nil {
		t.Fatalf("expected error for malformed right operand")
	}
	if _, err := CompareVersions("garbage", "1.0"); err == nil {
		t.Fatalf("expected error for malformed left operand")
	}
}

func TestMustCompare_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustCompare("1.0", "bad")
}
