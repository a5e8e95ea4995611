package services

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
)

var certNumberPattern = regexp.MustCompile(`^STIMMA-\d{4}-\d{4}-\d{4}-[0-9A-F]{6}$`)

func TestFormatCertificateNumber(t *testing.T) {
	userID := uuid.New()
	courseID := uuid.New()

	number := FormatCertificateNumber(2026, userID, courseID, randomHex6())
	if !certNumberPattern.MatchString(number) {
		t.Errorf("certificate number %q does not match expected format", number)
	}
}

func TestShortIDDeterministic(t *testing.T) {
	id := uuid.MustParse("a2b4c6d8-1234-5678-9abc-def012345678")

	first := shortID(id)
	for i := 0; i < 10; i++ {
		if got := shortID(id); got != first {
			t.Fatalf("shortID not deterministic: %d then %d", first, got)
		}
	}

	if first < 0 || first > 9999 {
		t.Errorf("shortID out of 4-digit range: %d", first)
	}
}

func TestRandomHex6(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		h := randomHex6()
		if len(h) != 6 {
			t.Fatalf("randomHex6 returned %q, want 6 chars", h)
		}
		seen[h] = true
	}
	// 100 draws from a 24-bit space colliding down to a handful would
	// mean the randomness is broken.
	if len(seen) < 90 {
		t.Errorf("randomHex6 produced only %d distinct values in 100 draws", len(seen))
	}
}
