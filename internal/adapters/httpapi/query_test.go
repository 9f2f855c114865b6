package httpapi

import (
	"testing"
	"time"
)

func TestParseBound(t *testing.T) {
	lower, err := parseBound("2026-08-20", false)
	if err != nil {
		t.Fatalf("lower bound: %v", err)
	}
	if !lower.Equal(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("lower %v", lower)
	}

	upper, err := parseBound("2026-08-20", true)
	if err != nil {
		t.Fatalf("upper bound: %v", err)
	}
	if !upper.Equal(time.Date(2026, 8, 20, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("upper %v", upper)
	}

	exact, err := parseBound("2026-08-20T14:30:00Z", true)
	if err != nil {
		t.Fatalf("timestamp bound: %v", err)
	}
	if !exact.Equal(time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("timestamp %v", exact)
	}

	if _, err := parseBound("next tuesday", false); err == nil {
		t.Fatal("invalid bound should fail")
	}
}
