package gmmseg

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the sentinel wrapped by every pre-dispatch validation
// failure. errors.Is(err, ErrInvalidInput) matches all of them.
var ErrInvalidInput = errors.New("invalid input")

// ErrBufferSizeMismatch indicates an image, label or output buffer whose
// length disagrees with the stated geometry.
type ErrBufferSizeMismatch struct {
	Buffer   string
	Expected int
	Actual   int
}

func (e *ErrBufferSizeMismatch) Error() string {
	return fmt.Sprintf("%s buffer size mismatch: expected %d, got %d", e.Buffer, e.Expected, e.Actual)
}

func (e *ErrBufferSizeMismatch) Unwrap() error { return ErrInvalidInput }

// ErrInvalidMixtureSpec indicates an unusable mixture configuration.
type ErrInvalidMixtureSpec struct {
	MixtureCount        int
	GaussiansPerMixture int
	Reason              string
}

func (e *ErrInvalidMixtureSpec) Error() string {
	return fmt.Sprintf("invalid mixture spec (%d mixtures x %d gaussians): %s",
		e.MixtureCount, e.GaussiansPerMixture, e.Reason)
}

func (e *ErrInvalidMixtureSpec) Unwrap() error { return ErrInvalidInput }

// ErrLabelOutOfRange indicates an initial label outside [-1, mixtureCount-1].
type ErrLabelOutOfRange struct {
	Pixel int
	Label int32
	Max   int32
}

func (e *ErrLabelOutOfRange) Error() string {
	return fmt.Sprintf("label %d at pixel %d out of range [-1, %d]", e.Label, e.Pixel, e.Max)
}

func (e *ErrLabelOutOfRange) Unwrap() error { return ErrInvalidInput }

// ErrInvalidGeometry indicates a non-positive image dimension.
type ErrInvalidGeometry struct {
	Width  int
	Height int
}

func (e *ErrInvalidGeometry) Error() string {
	return fmt.Sprintf("invalid image geometry %dx%d", e.Width, e.Height)
}

func (e *ErrInvalidGeometry) Unwrap() error { return ErrInvalidInput }
