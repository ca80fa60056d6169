package service

import (
	"errors"
	"strings"
	"testing"
)

func TestCaptionPoolsAreDisjointAndComplete(t *testing.T) {
	if len(FaceCaptions) != 10 || len(ObjectCaptions) != 10 {
		t.Fatalf("pool sizes = %d/%d", len(FaceCaptions), len(ObjectCaptions))
	}
	pool := DefaultCaptionPool()
	for _, c := range FaceCaptions {
		if pool.Contains(false, c) {
			t.Errorf("%q is in both pools", c)
		}
	}
}

func TestPickStaysInPool(t *testing.T) {
	pool := DefaultCaptionPool()
	pick := NewSeededPicker(99)
	for i := 0; i < 500; i++ {
		face := i%2 == 0
		if c := pool.Pick(face, pick); !pool.Contains(face, c) {
			t.Fatalf("Pick(face=%v) = %q outside its pool", face, c)
		}
	}
}

func TestPickReachesEveryCaption(t *testing.T) {
	pool := DefaultCaptionPool()
	pick := NewSeededPicker(1)
	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		seen[pool.Pick(true, pick)] = true
	}
	if len(seen) != len(FaceCaptions) {
		t.Errorf("picked %d distinct captions, want %d", len(seen), len(FaceCaptions))
	}
}

func TestNewCaptionPoolRejectsEmptyPools(t *testing.T) {
	if _, err := NewCaptionPool(nil, []string{"x"}); err == nil {
		t.Error("empty face pool accepted")
	}
	if _, err := NewCaptionPool([]string{"x"}, nil); err == nil {
		t.Error("empty object pool accepted")
	}
}

func TestCaptionPoolFromConfig(t *testing.T) {
	custom := []string{"Custom face caption"}
	pool := CaptionPoolFromConfig(custom, nil)
	if !pool.Contains(true, "Custom face caption") || pool.Contains(true, FaceCaptions[0]) {
		t.Error("configured face pool not used")
	}
	if !pool.Contains(false, ObjectCaptions[0]) {
		t.Error("object pool should fall back to the built-in list")
	}

	custom[0] = "mutated"
	if !pool.Contains(true, "Custom face caption") {
		t.Error("pool must not alias the caller's slice")
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err      error
		kind     ErrorKind
		wantText string
	}{
		{invalidInput(nil, "File '%s' is not a valid image.", "a.txt"), KindInvalidInput, "File 'a.txt' is not a valid image."},
		{processingFailure("store", errors.New("disk full")), KindProcessing, "store: disk full"},
		{errors.New("plain"), 0, "plain"},
	}
	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.kind {
			t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.kind)
		}
		if tc.err.Error() != tc.wantText {
			t.Errorf("Error() = %q, want %q", tc.err.Error(), tc.wantText)
		}
	}

	cause := errors.New("boom")
	if !errors.Is(processingFailure("encode", cause), cause) {
		t.Error("processing failure must unwrap to its cause")
	}
}

func TestNewMemeIDIsHex(t *testing.T) {
	id := newMemeID()
	if len(id) != 32 || strings.Trim(id, "0123456789abcdef") != "" {
		t.Fatalf("id %q is not 32 lowercase hex digits", id)
	}
	if id == newMemeID() {
		t.Fatal("ids must not repeat")
	}
}
