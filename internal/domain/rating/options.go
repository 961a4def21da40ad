package rating

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithKFactor sets the maximum rating change per outcome.
// Non-positive values are ignored.
func WithKFactor(k float64) Option {
	return func(c *Calculator) {
		if k > 0 {
			c.k = k
		}
	}
}
