package domain

import "errors"

var (
	ErrSessionActive      = errors.New("a broadcast session is already active")
	ErrNoActiveSession    = errors.New("no active broadcast session")
	ErrEncoderUnavailable = errors.New("encoder unavailable")
	ErrPromotionFailed    = errors.New("broadcast promotion failed")
	ErrOperatorDeclined   = errors.New("operator declined manual confirmation")
	ErrEndpointMismatch   = errors.New("endpoint configuration mismatch after write")
	ErrActivityUnknown    = errors.New("encoder activity could not be determined")
)
