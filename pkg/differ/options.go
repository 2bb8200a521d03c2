package differ

// Option is a functional option for configuring Differ
type Option func(*differ)

// WithIgnoredFields sets field paths to ignore during comparison
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// WithMaxValueLength truncates rendered old and new values.
func WithMaxValueLength(n int) Option {
	return func(d *differ) {
		d.maxValueLength = n
	}
}
