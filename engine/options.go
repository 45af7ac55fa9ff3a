package engine

// ============================================================================
// ENGINE OPTIONS — Functional options for Summarize() and Execute()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	TopK int // how many destinations Summary.TopDestinations keeps
}

// DefaultTopK is the number of top destinations reported by Summarize.
const DefaultTopK = 5

// WithTopK sets how many top destinations Summarize reports.
// Values below 1 keep the default.
func WithTopK(k int) Option {
	return func(c *config) {
		if k > 0 {
			c.TopK = k
		}
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		TopK: DefaultTopK,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
