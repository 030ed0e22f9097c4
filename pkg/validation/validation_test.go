package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"playgrid/internal/core/domain"
)

func TestValidateStreamID(t *testing.T) {
	assert.NoError(t, ValidateStreamID("abc_123-XYZ"))
	assert.Error(t, ValidateStreamID(""))
	assert.Error(t, ValidateStreamID("has space"))
	assert.Error(t, ValidateStreamID("semi;colon"))
	assert.Error(t, ValidateStreamID(strings.Repeat("a", 101)))
	assert.NoError(t, ValidateStreamID(strings.Repeat("a", 100)))
}

func TestValidateSourceURL(t *testing.T) {
	assert.NoError(t, ValidateSourceURL("https://www.twitch.tv/somebody"))
	assert.NoError(t, ValidateSourceURL("http://example.com/live"))
	assert.Error(t, ValidateSourceURL(""))
	assert.Error(t, ValidateSourceURL("   "))
	assert.Error(t, ValidateSourceURL("ftp://example.com/stream"))
	assert.Error(t, ValidateSourceURL("https://"))
	assert.Error(t, ValidateSourceURL("not a url at all"))
}

func TestValidateVolume(t *testing.T) {
	assert.NoError(t, ValidateVolume(0))
	assert.NoError(t, ValidateVolume(0.5))
	assert.NoError(t, ValidateVolume(1))
	assert.Error(t, ValidateVolume(-0.1))
	assert.Error(t, ValidateVolume(1.1))
}

func TestValidateSession(t *testing.T) {
	valid := &domain.StreamSession{
		ID:        "alpha",
		SourceURL: "https://www.twitch.tv/alpha",
		Platform:  domain.PlatformTwitch,
	}
	assert.NoError(t, ValidateSession(valid))

	assert.Error(t, ValidateSession(nil))

	badPlatform := *valid
	badPlatform.Platform = "myspace"
	assert.Error(t, ValidateSession(&badPlatform))

	badQuality := *valid
	badQuality.RequestedQuality = "4k"
	assert.Error(t, ValidateSession(&badQuality))

	okQuality := *valid
	okQuality.RequestedQuality = domain.QualityHigh
	assert.NoError(t, ValidateSession(&okQuality))

	longTitle := *valid
	longTitle.DisplayTitle = strings.Repeat("x", 201)
	assert.Error(t, ValidateSession(&longTitle))
}
