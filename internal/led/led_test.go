package led

import (
	"errors"
	"strings"
	"testing"
)

func TestIDValid(t *testing.T) {
	cases := []struct {
		id   ID
		want bool
	}{
		{-1, false},
		{0, true},
		{Count - 1, true},
		{Count, false},
	}
	for _, c := range cases {
		if got := c.id.Valid(); got != c.want {
			t.Errorf("ID(%d).Valid() = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestColorFromInts(t *testing.T) {
	c, err := ColorFromInts(1, 2, 255)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != (Color{1, 2, 255}) {
		t.Errorf("got %v", c)
	}

	for _, bad := range [][]int{{1, 2}, {1, 2, 3, 4}, {256, 0, 0}, {0, -1, 0}} {
		if _, err := ColorFromInts(bad...); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ColorFromInts(%v) error = %v, want ErrInvalidColor", bad, err)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-5, 300, 128); got != (Color{0, 255, 128}) {
		t.Errorf("Clamp = %v", got)
	}
}

func TestOpErrorContext(t *testing.T) {
	err := &OpError{Op: "get", Controller: 1, Identity: "Teensy2", Led: 42, Err: ErrTimeout}
	if !errors.Is(err, ErrTimeout) {
		t.Fatal("OpError should unwrap to ErrTimeout")
	}
	msg := err.Error()
	for _, want := range []string{"get", "controller=1", "Teensy2", "led=42"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}

	plain := NewOpError("clear", ErrShortWrite)
	if strings.Contains(plain.Error(), "controller=") || strings.Contains(plain.Error(), "led=") {
		t.Errorf("unexpected context in %q", plain.Error())
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(NewOpError("set", ErrInvalidLed)) {
		t.Error("ErrInvalidLed should be a validation error")
	}
	if IsValidation(ErrTimeout) {
		t.Error("ErrTimeout is not a validation error")
	}
}
