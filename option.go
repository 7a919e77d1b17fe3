package pintree

// DefaultPoolSize is the buffer pool's frame count when not configured.
const DefaultPoolSize = 128

// Options configures an index.
type Options struct {
	name            string
	poolSize        int
	leafMaxSize     int
	internalMaxSize int
	cmp             Compare
	logger          Logger
}

func defaultOptions() Options {
	return Options{
		name:     "primary",
		poolSize: DefaultPoolSize,
		cmp:      BytesCompare,
		logger:   DiscardLogger{},
	}
}

// Option configures the index using the functional options pattern.
type Option func(*Options)

// WithName sets the index name used as the header page record key.
// At most 32 bytes.
func WithName(name string) Option {
	return func(o *Options) { o.name = name }
}

// WithPoolSize sets the buffer pool's frame count.
func WithPoolSize(frames int) Option {
	return func(o *Options) { o.poolSize = frames }
}

// WithLeafMaxSize caps entries per leaf node. Zero derives the capacity
// from the page size. Small values are mainly useful in tests.
func WithLeafMaxSize(n int) Option {
	return func(o *Options) { o.leafMaxSize = n }
}

// WithInternalMaxSize caps children per internal node. Zero derives the
// capacity from the page size.
func WithInternalMaxSize(n int) Option {
	return func(o *Options) { o.internalMaxSize = n }
}

// WithCompare sets the key comparator. It must be a total order and
// must not change across reopens of the same file.
func WithCompare(cmp Compare) Option {
	return func(o *Options) { o.cmp = cmp }
}

// WithLogger sets the logger for rare structural events. The default
// discards everything.
func WithLogger(l Logger) Option {
	return func(o *Options) { o.logger = l }
}
