package enums

import "fmt"

// CaptureState tracks two-phase settlement of a payment attempt. Only Tabby
// attempts move past none.
type CaptureState string

const (
	CaptureStateNone       CaptureState = "none"
	CaptureStateAuthorized CaptureState = "authorized"
	CaptureStateCaptured   CaptureState = "captured"
	CaptureStateFailed     CaptureState = "failed"
)

var validCaptureStates = []CaptureState{
	CaptureStateNone,
	CaptureStateAuthorized,
	CaptureStateCaptured,
	CaptureStateFailed,
}

// String implements fmt.Stringer.
func (c CaptureState) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CaptureState.
func (c CaptureState) IsValid() bool {
	for _, candidate := range validCaptureStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCaptureState converts raw input into a CaptureState.
func ParseCaptureState(value string) (CaptureState, error) {
	for _, candidate := range validCaptureStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid capture state %q", value)
}
