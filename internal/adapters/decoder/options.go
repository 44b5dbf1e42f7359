package decoder

import "github.com/okian/churnbatch/pkg/logger"

// Default limits.
const (
	DefaultMaxRecords  = 100_000
	DefaultMaxFileSize = 50 << 20
)

// Option applies a configuration option to the Decoder.
type Option func(*Decoder)

// WithMaxRecords caps the number of data rows per file.
func WithMaxRecords(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxRecords = n
		}
	}
}

// WithMaxFileSize caps the number of bytes read per file.
func WithMaxFileSize(bytes int64) Option {
	return func(d *Decoder) {
		if bytes > 0 {
			d.maxFileSize = bytes
		}
	}
}

// WithLogger sets the decoder logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}
