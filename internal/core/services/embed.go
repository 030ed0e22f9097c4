package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"playgrid/internal/core/domain"
)

// EmbedBuilder constructs the platform-specific payload dispatched into a
// rendering surface. Each platform's embed page is an opaque black box; the
// builder only knows how to derive the embed target from a source URL.
type EmbedBuilder struct {
	// ParentDomain is the domain the embedding host presents to platforms
	// that enforce parent-frame checks.
	ParentDomain string
	// AlternateParentDomain is the fallback used by recovery strategies.
	AlternateParentDomain string
}

func NewEmbedBuilder(parentDomain string) *EmbedBuilder {
	if parentDomain == "" {
		parentDomain = "playgrid.app"
	}
	return &EmbedBuilder{
		ParentDomain:          parentDomain,
		AlternateParentDomain: "embed." + parentDomain,
	}
}

var (
	twitchChannelRe  = regexp.MustCompile(`(?:www\.|m\.)?twitch\.tv/([a-zA-Z0-9_]+)`)
	youtubeWatchRe   = regexp.MustCompile(`[?&]v=([a-zA-Z0-9_-]{6,})`)
	youtubeShortRe   = regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{6,})`)
	youtubeLiveRe    = regexp.MustCompile(`youtube\.com/live/([a-zA-Z0-9_-]{6,})`)
	youtubeChannelRe = regexp.MustCompile(`youtube\.com/(?:c/|channel/|@)([a-zA-Z0-9_-]+)`)
	kickChannelRe    = regexp.MustCompile(`kick\.com/([a-zA-Z0-9_-]+)`)
)

// ExtractChannelID pulls the platform-native channel or video identifier out
// of a source URL.
func (b *EmbedBuilder) ExtractChannelID(platform domain.Platform, sourceURL string) (string, error) {
	switch platform {
	case domain.PlatformTwitch:
		if m := twitchChannelRe.FindStringSubmatch(sourceURL); m != nil {
			return strings.ToLower(m[1]), nil
		}
	case domain.PlatformYouTube:
		for _, re := range []*regexp.Regexp{youtubeWatchRe, youtubeShortRe, youtubeLiveRe, youtubeChannelRe} {
			if m := re.FindStringSubmatch(sourceURL); m != nil {
				return m[1], nil
			}
		}
	case domain.PlatformKick:
		if m := kickChannelRe.FindStringSubmatch(sourceURL); m != nil {
			return strings.ToLower(m[1]), nil
		}
	case domain.PlatformGeneric:
		return "", nil
	}
	return "", fmt.Errorf("cannot extract channel identifier from %q for platform %s", sourceURL, platform)
}

// Build produces the embed content for a session's source URL.
func (b *EmbedBuilder) Build(platform domain.Platform, sourceURL string, quality domain.QualityLevel) (*domain.EmbedContent, error) {
	channelID, err := b.ExtractChannelID(platform, sourceURL)
	if err != nil {
		return nil, err
	}

	switch platform {
	case domain.PlatformTwitch:
		target := fmt.Sprintf("https://player.twitch.tv/?channel=%s&parent=%s&autoplay=true&muted=false",
			url.QueryEscape(channelID), url.QueryEscape(b.ParentDomain))
		if quality.Ordered() {
			target += "&quality=" + url.QueryEscape(string(quality))
		}
		return &domain.EmbedContent{
			TargetURL:    target,
			ParentDomain: b.ParentDomain,
			ChannelID:    channelID,
		}, nil

	case domain.PlatformYouTube:
		target := fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=1&playsinline=1", url.PathEscape(channelID))
		return &domain.EmbedContent{
			TargetURL: target,
			ChannelID: channelID,
		}, nil

	case domain.PlatformKick:
		target := fmt.Sprintf("https://player.kick.com/%s?autoplay=true", url.PathEscape(channelID))
		return &domain.EmbedContent{
			TargetURL: target,
			ChannelID: channelID,
		}, nil

	default:
		return &domain.EmbedContent{TargetURL: sourceURL}, nil
	}
}

// SurfaceConfiguration returns the per-platform rendering surface setup. All
// surfaces share one process pool key so the embedding host can recycle the
// underlying contexts.
func (b *EmbedBuilder) SurfaceConfiguration(platform domain.Platform) domain.SurfaceConfiguration {
	cfg := domain.SurfaceConfiguration{
		Platform:       platform,
		ProcessPoolKey: "playgrid-shared",
		SuppressUI:     true,
		AllowAutoplay:  true,
	}

	switch platform {
	case domain.PlatformTwitch:
		cfg.InjectedScript = "twitch_chrome_hide"
	case domain.PlatformYouTube:
		cfg.InjectedScript = "youtube_chrome_hide"
	case domain.PlatformKick:
		cfg.InjectedScript = "kick_chrome_hide"
		// Kick's player blocks some embedded user agents.
		cfg.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	default:
		cfg.SuppressUI = false
	}
	return cfg
}
