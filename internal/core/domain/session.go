package domain

import (
	"time"
)

type StreamID string
type SurfaceID string

// Platform identifies which embed flavor a stream plays through.
type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
	PlatformKick    Platform = "kick"
	PlatformGeneric Platform = "generic"
)

// KnownPlatforms lists every platform the engine has embed rules for.
var KnownPlatforms = []Platform{PlatformTwitch, PlatformYouTube, PlatformKick, PlatformGeneric}

func (p Platform) Valid() bool {
	for _, known := range KnownPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// StreamSession is the caller-supplied descriptor of a single live stream.
// Immutable after creation except for metadata refresh (viewer count).
type StreamSession struct {
	ID               StreamID
	SourceURL        string
	Platform         Platform
	DisplayTitle     string
	IsLive           bool
	ViewerCount      int
	RequestedQuality QualityLevel
	CreatedAt        time.Time
}
