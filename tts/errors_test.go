package tts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSynthesisError_Transient(t *testing.T) {
	cause := errors.New("subprocess wedged")
	err := TransientSynthesis(3, cause)

	if err.Fatal {
		t.Error("TransientSynthesis should not be fatal")
	}
	if err.Segment != 3 {
		t.Errorf("Expected segment 3, got %d", err.Segment)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should reach the cause")
	}
	if !strings.Contains(err.Error(), "transient") {
		t.Errorf("Error message should mention transient: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "segment 3") {
		t.Errorf("Error message should name the segment: %q", err.Error())
	}
}

func TestSynthesisError_Fatal(t *testing.T) {
	cause := errors.New("model file missing")
	err := FatalSynthesis(0, cause)

	if !err.Fatal {
		t.Error("FatalSynthesis should be fatal")
	}
	if !strings.Contains(err.Error(), "fatal") {
		t.Errorf("Error message should mention fatal: %q", err.Error())
	}
}

func TestSynthesisError_WithVoice(t *testing.T) {
	err := FatalSynthesis(1, errors.New("boom"))
	err.Voice = "en_US-lessac-medium"

	if !strings.Contains(err.Error(), "en_US-lessac-medium") {
		t.Errorf("Error message should name the voice: %q", err.Error())
	}
}

func TestIsFatalSynthesis(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"fatal", FatalSynthesis(0, errors.New("x")), true},
		{"transient", TransientSynthesis(0, errors.New("x")), false},
		{"wrapped fatal", fmt.Errorf("session: %w", FatalSynthesis(0, errors.New("x"))), true},
		{"joined fatal", errors.Join(nil, FatalSynthesis(0, errors.New("x"))), true},
		{"plain error", errors.New("x"), false},
		{"device error", NewDeviceError("write", errors.New("x")), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatalSynthesis(tt.err); got != tt.want {
				t.Errorf("IsFatalSynthesis(%v) = %v, expected %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientSynthesis(t *testing.T) {
	if !IsTransientSynthesis(TransientSynthesis(0, errors.New("x"))) {
		t.Error("Expected true for transient error")
	}
	if IsTransientSynthesis(FatalSynthesis(0, errors.New("x"))) {
		t.Error("Expected false for fatal error")
	}
	if IsTransientSynthesis(errors.New("x")) {
		t.Error("Expected false for plain error")
	}
}

func TestDeviceError(t *testing.T) {
	cause := errors.New("ALSA device vanished")
	err := NewDeviceError("write", cause)

	if !errors.Is(err, cause) {
		t.Error("Unwrap should reach the cause")
	}
	if !strings.Contains(err.Error(), "write") {
		t.Errorf("Error message should name the operation: %q", err.Error())
	}

	if !IsDeviceError(err) {
		t.Error("IsDeviceError should match")
	}
	if !IsDeviceError(fmt.Errorf("session: %w", err)) {
		t.Error("IsDeviceError should match through wrapping")
	}
	if IsDeviceError(TransientSynthesis(0, cause)) {
		t.Error("IsDeviceError should not match synthesis errors")
	}
}
