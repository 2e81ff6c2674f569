package harmony

// Metrics is a generation statistics snapshot reported by the engine.
// The orchestrator forwards snapshots verbatim and only reads Success.
type Metrics struct {
	TTFBMillis       int     `json:"ttfb_ms"`
	TokensPerSec     float64 `json:"tok_per_sec"`
	TotalMillis      int     `json:"total_ms"`
	PeakRSSMB        int     `json:"peak_rss_mb"`
	Success          bool    `json:"success"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}
