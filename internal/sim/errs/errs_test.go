package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := ErrInsufficientFunds.Withf("need %d points, have %d", 300, 12)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Withf copy should match its sentinel")
	}
	if errors.Is(err, ErrInsufficientMaterials) {
		t.Fatalf("different code matched")
	}
	if err.Error() != "need 300 points, have 12" {
		t.Fatalf("msg=%q", err.Error())
	}
	if ErrInsufficientFunds.Msg != "not enough points" {
		t.Fatalf("Withf mutated the sentinel: %q", ErrInsufficientFunds.Msg)
	}

	wrapped := fmt.Errorf("purchase: %w", err)
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		t.Fatalf("wrapped error lost its code")
	}
	if KindOf(wrapped) != KindState || CodeOf(wrapped) != CodeInsufficientFunds {
		t.Fatalf("kind=%v code=%q", KindOf(wrapped), CodeOf(wrapped))
	}
}

func TestPersistence_WrapsCause(t *testing.T) {
	err := Persistence("save player:1:2", io.ErrUnexpectedEOF)
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("persistence error should match both the sentinel and its cause")
	}
	if KindOf(err) != KindPersistence {
		t.Fatalf("kind=%v", KindOf(err))
	}
	if err.Error() != "save player:1:2: unexpected EOF" {
		t.Fatalf("msg=%q", err.Error())
	}
}

func TestKindOf_PlainErrors(t *testing.T) {
	plain := errors.New("boom")
	if KindOf(plain) != 0 || CodeOf(plain) != "" {
		t.Fatalf("plain error classified: %v %q", KindOf(plain), CodeOf(plain))
	}
	if KindOf(nil) != 0 {
		t.Fatalf("nil classified")
	}
	if Kind(0).String() != "unknown" || KindValidation.String() != "validation" {
		t.Fatalf("kind strings")
	}
	if (&Error{Code: CodeNotFound}).Error() != CodeNotFound {
		t.Fatalf("empty msg should fall back to the code")
	}
}
