package services

import (
	"strings"

	"playgrid/internal/core/domain"
)

// StrategyTable holds the fixed per-platform recovery fallback orders. The
// coordinator walks a table entry front to back, skipping strategies already
// tried within the current episode.
type StrategyTable struct {
	embed *EmbedBuilder
}

func NewStrategyTable(embed *EmbedBuilder) *StrategyTable {
	return &StrategyTable{embed: embed}
}

func plainRetry() domain.RecoveryStrategy {
	return domain.RecoveryStrategy{Name: "plain-retry", Kind: domain.StrategyPlainRetry}
}

func clearCache() domain.RecoveryStrategy {
	return domain.RecoveryStrategy{Name: "clear-cache", Kind: domain.StrategyClearCache}
}

func (t *StrategyTable) alternativeParentDomain() domain.RecoveryStrategy {
	return domain.RecoveryStrategy{
		Name: "alternative-parent-domain",
		Kind: domain.StrategyAlternateURL,
		Rewrite: func(originalURL string) string {
			return strings.Replace(originalURL,
				"parent="+t.embed.ParentDomain,
				"parent="+t.embed.AlternateParentDomain, 1)
		},
	}
}

func (t *StrategyTable) mobileSite() domain.RecoveryStrategy {
	return domain.RecoveryStrategy{
		Name: "mobile-site",
		Kind: domain.StrategyAlternateURL,
		Rewrite: func(originalURL string) string {
			if channelID, err := t.embed.ExtractChannelID(domain.PlatformTwitch, originalURL); err == nil && channelID != "" {
				return "https://m.twitch.tv/" + channelID
			}
			return strings.Replace(originalURL, "www.twitch.tv", "m.twitch.tv", 1)
		},
	}
}

func (t *StrategyTable) nocookieHost() domain.RecoveryStrategy {
	return domain.RecoveryStrategy{
		Name: "nocookie-host",
		Kind: domain.StrategyAlternateURL,
		Rewrite: func(originalURL string) string {
			return strings.Replace(originalURL, "www.youtube.com", "www.youtube-nocookie.com", 1)
		},
	}
}

// For returns the ordered fallback list for one platform and error kind.
// An empty list means the failure is not recoverable by retrying.
func (t *StrategyTable) For(platform domain.Platform, kind domain.ErrorKind) []domain.RecoveryStrategy {
	switch kind {
	case domain.ErrKindInvalidURL:
		return nil

	case domain.ErrKindCORSBlocked:
		switch platform {
		case domain.PlatformTwitch:
			return []domain.RecoveryStrategy{t.alternativeParentDomain(), t.mobileSite(), clearCache()}
		case domain.PlatformYouTube:
			return []domain.RecoveryStrategy{t.nocookieHost(), clearCache()}
		default:
			return []domain.RecoveryStrategy{clearCache(), plainRetry()}
		}

	case domain.ErrKindLoadTimeout:
		switch platform {
		case domain.PlatformYouTube:
			return []domain.RecoveryStrategy{t.nocookieHost(), plainRetry()}
		default:
			return []domain.RecoveryStrategy{plainRetry(), clearCache()}
		}

	case domain.ErrKindEmbedNotSupported:
		switch platform {
		case domain.PlatformTwitch:
			return []domain.RecoveryStrategy{t.mobileSite(), plainRetry()}
		case domain.PlatformYouTube:
			return []domain.RecoveryStrategy{t.nocookieHost(), plainRetry()}
		default:
			return []domain.RecoveryStrategy{plainRetry()}
		}

	case domain.ErrKindEmbeddingLost:
		return []domain.RecoveryStrategy{clearCache(), plainRetry()}

	case domain.ErrKindPlatformError:
		return []domain.RecoveryStrategy{plainRetry(), clearCache()}

	case domain.ErrKindNetwork, domain.ErrKindStreamOffline, domain.ErrKindUnknown:
		return []domain.RecoveryStrategy{plainRetry()}

	default:
		return []domain.RecoveryStrategy{plainRetry()}
	}
}
