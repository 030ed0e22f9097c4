package domain

// SurfaceConfiguration describes how an embedded web-rendering context must
// be set up for a platform: all surfaces share one underlying process pool,
// with per-platform injected behavior on top.
type SurfaceConfiguration struct {
	Platform       Platform `json:"platform"`
	ProcessPoolKey string   `json:"process_pool_key"`
	UserAgent      string   `json:"user_agent"`
	InjectedScript string   `json:"injected_script"`
	SuppressUI     bool     `json:"suppress_ui"`
	AllowAutoplay  bool     `json:"allow_autoplay"`
}

// EmbedContent is the platform-specific payload dispatched into a surface:
// either a direct target URL or an HTML document hosting the embed iframe.
type EmbedContent struct {
	TargetURL    string `json:"target_url"`
	HTML         string `json:"html,omitempty"`
	ParentDomain string `json:"parent_domain,omitempty"`
	ChannelID    string `json:"channel_id,omitempty"`
}
