package cfb

// Options configures how a Container is opened: which warning categories
// escalate to fatal errors, where diagnostics are delivered, and how the
// byte source should be backed when Open is given a plain file.
type Options struct {
	sink       Sink
	promoted   map[Category]bool
	windowSize int64
	useWindow  bool
}

// Option mutates an Options value being built up by Open.
type Option func(*Options)

// NewOptions builds an Options from a list of Option values, starting from
// permissive defaults: no warnings promoted, the default (silent) sink, and
// an mmap-backed byte source.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		promoted:   make(map[Category]bool),
		windowSize: defaultWindowSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithSink routes every non-promoted diagnostic to sink instead of the
// silent DefaultSink.
func WithSink(sink Sink) Option {
	return func(o *Options) { o.sink = sink }
}

// WithPromoted escalates the given categories from warnings to fatal errors.
func WithPromoted(categories ...Category) Option {
	return func(o *Options) {
		for _, c := range categories {
			o.promoted[c] = true
		}
	}
}

// WithStrict promotes every warning category the default permissive reading
// tolerates, turning any anomaly into a fatal error. Equivalent to
// WithPromoted with the full warning taxonomy.
func WithStrict() Option {
	return WithPromoted(
		HeaderCorrupt,
		SectorSizeWarning,
		MiniSectorSizeWarning,
		CutoffWarning,
		DIFATWarning,
		DirectoryWarning,
		StreamSizeMismatch,
	)
}

// WithWindowedSource forces use of the sliding-window byte-source adapter
// (see WindowedSource) instead of a memory mapping, with the given window
// size in bytes (rounded up to a power of two, minimum 4096).
func WithWindowedSource(windowSize int64) Option {
	return func(o *Options) {
		o.useWindow = true
		o.windowSize = windowSize
	}
}
