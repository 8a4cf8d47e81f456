// Package vectorstore provides similarity search over embedded document
// chunks stored in PostgreSQL + pgvector.
package vectorstore

// Record is one embedded chunk in the index.
type Record struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// Match is a single search result with its cosine similarity score (0-1).
type Match struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// QueryOption configures a similarity search using the functional options
// pattern.
type QueryOption func(*queryConfig)

type queryConfig struct {
	topK      int
	threshold float32
	filter    map[string]string
}

// Query bounds. Callers asking for more than MaxTopK are clamped.
const (
	DefaultTopK = 5
	MaxTopK     = 20
)

// WithTopK sets the maximum number of results to return. Values above
// MaxTopK are clamped; values below 1 fall back to DefaultTopK.
func WithTopK(k int) QueryOption {
	return func(c *queryConfig) {
		c.topK = k
	}
}

// WithThreshold drops matches whose similarity is below the given value.
// Values are clamped to [0, 1].
func WithThreshold(t float32) QueryOption {
	return func(c *queryConfig) {
		c.threshold = t
	}
}

// WithFilter restricts results to records whose metadata contains the given
// key/value pair. Multiple calls add additional filters (AND logic).
func WithFilter(key, value string) QueryOption {
	return func(c *queryConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

func buildQueryConfig(opts []QueryOption) *queryConfig {
	cfg := &queryConfig{topK: DefaultTopK}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.topK < 1 {
		cfg.topK = DefaultTopK
	}
	if cfg.topK > MaxTopK {
		cfg.topK = MaxTopK
	}
	if cfg.threshold < 0 {
		cfg.threshold = 0
	}
	if cfg.threshold > 1 {
		cfg.threshold = 1
	}
	return cfg
}
