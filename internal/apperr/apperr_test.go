package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelMatchesKindThroughWrapping(t *testing.T) {
	errSoldOut := New(ErrConflict, "item unavailable")
	wrapped := fmt.Errorf("inventory: sell: %w", errSoldOut)

	if !errors.Is(wrapped, errSoldOut) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("expected wrapped error to match conflict kind")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("did not expect not found kind")
	}
	if Kind(wrapped) != ErrConflict {
		t.Fatalf("expected kind conflict, got %v", Kind(wrapped))
	}
}

func TestKindOfPlainError(t *testing.T) {
	if Kind(errors.New("boom")) != nil {
		t.Fatalf("expected nil kind for plain error")
	}
	if Kind(nil) != nil {
		t.Fatalf("expected nil kind for nil error")
	}
}
