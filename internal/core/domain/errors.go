package domain

import "errors"

var (
	ErrStreamNotFound    = errors.New("stream not found")
	ErrStreamExists      = errors.New("stream already registered")
	ErrSurfaceNotFound   = errors.New("rendering surface not found")
	ErrSurfaceDead       = errors.New("rendering surface is dead")
	ErrInvalidSession    = errors.New("invalid stream session")
	ErrEngineClosed      = errors.New("playback engine closed")
	ErrRetryCeiling      = errors.New("retry ceiling exceeded")
	ErrQualityCooldown   = errors.New("manual quality change within cooldown window")
	ErrRecoveryInFlight  = errors.New("recovery already in progress")
	ErrPlatformUnhealthy = errors.New("platform circuit breaker open")
)
