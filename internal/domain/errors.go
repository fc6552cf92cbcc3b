package domain

import "errors"

var (
	// ErrSubscriptionUnavailable is returned by a CaptureObserver when the
	// platform has no recording-status source or registration failed.
	ErrSubscriptionUnavailable = errors.New("capture status subscription unavailable")

	// ErrAlreadyTerminated is returned when an event reaches the controller
	// after OnTerminate. It signals a lifecycle-ordering bug in the host.
	ErrAlreadyTerminated = errors.New("protection controller already terminated")
)
