package domain

// AudioChannelState is the per-stream audio intent. The effective output
// volume is never stored; the mixer recomputes it on every rebalance.
type AudioChannelState struct {
	StreamID   StreamID
	BaseVolume float64
	IsMuted    bool
}
