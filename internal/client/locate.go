package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
)

// PositionOptions mirrors what a device geolocation request accepts.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration // 0 forbids a cached fix
}

func DefaultPositionOptions() PositionOptions {
	return PositionOptions{HighAccuracy: true, Timeout: 20 * time.Second, MaximumAge: 0}
}

// Locator obtains the device's current coordinate.
type Locator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (model.Coordinate, error)
}

type LocationErrorCode int

const (
	CodeUnknown LocationErrorCode = iota
	CodePermissionDenied
	CodePositionUnavailable
	CodeTimeout
)

func (c LocationErrorCode) Message() string {
	switch c {
	case CodePermissionDenied:
		return "Permission denied. Please enable location access in your browser."
	case CodePositionUnavailable:
		return "Position unavailable."
	case CodeTimeout:
		return "Location request timed out."
	default:
		return "An unknown error occurred."
	}
}

type LocationError struct {
	Code LocationErrorCode
	Err  error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", e.Code.Message(), e.Err)
	}
	return e.Code.Message()
}

func (e *LocationError) Unwrap() error { return e.Err }

var ErrUnsupported = errors.New("geolocation unsupported")

const (
	msgUnsupported = "Geolocation is not supported by your browser."
	// MsgFetchFailed is shown when the restaurants request fails.
	MsgFetchFailed = "Failed to fetch restaurants."
)

// UserMessage picks the user-facing text for a geolocation failure.
func UserMessage(err error) string {
	if errors.Is(err, ErrUnsupported) {
		return msgUnsupported
	}
	var le *LocationError
	if errors.As(err, &le) {
		return le.Code.Message()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout.Message()
	}
	return CodeUnknown.Message()
}

// Locate asks loc for a fix, bounded by opts.Timeout. Every failure comes
// back as a *LocationError, or ErrUnsupported when loc is nil.
func Locate(ctx context.Context, loc Locator, opts PositionOptions) (model.Coordinate, error) {
	if loc == nil {
		return model.Coordinate{}, ErrUnsupported
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	c, err := loc.CurrentPosition(ctx, opts)
	if err == nil {
		return c, nil
	}
	var le *LocationError
	switch {
	case errors.As(err, &le):
		return model.Coordinate{}, le
	case errors.Is(err, context.DeadlineExceeded):
		return model.Coordinate{}, &LocationError{Code: CodeTimeout, Err: err}
	default:
		return model.Coordinate{}, &LocationError{Code: CodeUnknown, Err: err}
	}
}

// StaticLocator answers with a fixed coordinate, or position-unavailable
// when none was given.
type StaticLocator struct {
	At *model.Coordinate
}

func (s StaticLocator) CurrentPosition(ctx context.Context, _ PositionOptions) (model.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return model.Coordinate{}, err
	}
	if s.At == nil {
		return model.Coordinate{}, &LocationError{Code: CodePositionUnavailable}
	}
	return *s.At, nil
}
