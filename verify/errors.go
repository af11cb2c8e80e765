package verify

import "fmt"

// ValidationError reports input that cannot be examined, such as a pixel buffer that
// does not match its dimensions.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates that no structurally valid payload decoded under the seed.
type NotFoundError struct {
	Msg string
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// PolicyError indicates a payload was decoded but the detection policy rejected it
// (e.g. confidence at or below the threshold).
type PolicyError struct {
	Msg string
}

func (e *PolicyError) Error() string {
	return e.Msg
}

// EvidenceError indicates that a signed evidence report failed verification.
type EvidenceError struct {
	Msg string
	Err error
}

func (e *EvidenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *EvidenceError) Unwrap() error {
	return e.Err
}
