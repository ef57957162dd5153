package bind_group_cache

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*cache)

// WithOnRebuild registers a callback invoked after every bind group build.
//
// Parameters:
//   - fn: called with the cache key and its build count
//
// Returns:
//   - CacheBuilderOption: a function that sets the rebuild callback
func WithOnRebuild(fn func(key string, rebuilds int)) CacheBuilderOption {
	return func(c *cache) {
		c.onRebuild = fn
	}
}
