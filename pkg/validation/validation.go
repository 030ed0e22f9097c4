package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"playgrid/internal/core/domain"
)

var (
	// StreamIDRegex validates stream ID format
	StreamIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateStreamID validates a caller-supplied stream ID
func ValidateStreamID(streamID string) error {
	if streamID == "" {
		return fmt.Errorf("stream ID is required")
	}
	if len(streamID) > 100 {
		return fmt.Errorf("stream ID is too long (max 100 characters)")
	}
	if !StreamIDRegex.MatchString(streamID) {
		return fmt.Errorf("invalid stream ID format")
	}
	return nil
}

// ValidateSourceURL validates a stream source URL
func ValidateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("source URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid source URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source URL must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("source URL must have a host")
	}
	return nil
}

// ValidateVolume validates a volume value
func ValidateVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be in [0,1], got %v", v)
	}
	return nil
}

// ValidateSession validates a complete stream session descriptor
func ValidateSession(session *domain.StreamSession) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if err := ValidateStreamID(string(session.ID)); err != nil {
		return err
	}
	if err := ValidateSourceURL(session.SourceURL); err != nil {
		return err
	}
	if !session.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", session.Platform)
	}
	if session.RequestedQuality != "" && !session.RequestedQuality.Valid() {
		return fmt.Errorf("unknown quality level %q", session.RequestedQuality)
	}
	if len(session.DisplayTitle) > 200 {
		return fmt.Errorf("display title is too long (max 200 characters)")
	}
	return nil
}
