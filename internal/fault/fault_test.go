package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrStorage, cause)

	if !errors.Is(err, ErrStorage) {
		t.Error("wrapped error lost its kind")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
	if errors.Is(err, ErrProvider) {
		t.Error("wrapped error matches an unrelated kind")
	}

	if Wrap(ErrStorage, nil) != nil {
		t.Error("Wrap(kind, nil) should be nil")
	}
}

func TestWrap_SurvivesFurtherWrapping(t *testing.T) {
	err := Wrap(ErrProvider, errors.New("quota exceeded"))
	outer := fmt.Errorf("embed chunk 3/7: %w", err)

	if !errors.Is(outer, ErrProvider) {
		t.Error("kind lost after re-wrapping")
	}
	if Kind(outer) != "provider" {
		t.Errorf("Kind() = %q, want %q", Kind(outer), "provider")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", Wrap(ErrValidation, errors.New("x")), "validation"},
		{"format", Wrap(ErrFormat, errors.New("x")), "format"},
		{"provider", Wrap(ErrProvider, errors.New("x")), "provider"},
		{"storage", Wrap(ErrStorage, errors.New("x")), "storage"},
		{"unauthorized", Wrap(ErrUnauthorized, errors.New("x")), "unauthorized"},
		{"untagged", errors.New("x"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}
