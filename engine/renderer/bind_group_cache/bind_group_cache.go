package bind_group_cache

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
)

// Binding is one resource bound into a bind group slot, together with the generation the resource had
// when it was handed to the cache.
type Binding struct {
	// Slot is the logical slot, normally equal to the shader binding index.
	Slot uint32
	// Generation is the resource generation stamped by the resource manager.
	Generation uint64
	// Resource is the backend entry to bind.
	Resource backend.BindGroupEntry
}

// cacheEntry is one cached bind group and the generations it was built from.
type cacheEntry struct {
	// label is the cache key, also used as the backend debug label.
	label string

	// bindGroup is the GPU bind group built for the recorded generations.
	bindGroup backend.BindGroup
	// layout is the layout bindGroup was built against.
	layout backend.BindGroupLayout
	// generations holds the generation of each bound resource keyed by slot.
	generations map[uint32]uint64

	// rebuilds counts how many times this key was built, including the first build.
	rebuilds int
}

// matches reports whether the entry was built against layout with exactly these bindings.
func (e *cacheEntry) matches(layout backend.BindGroupLayout, bindings []Binding) bool {
	if e.bindGroup == nil || e.layout != layout || len(e.generations) != len(bindings) {
		return false
	}
	for _, b := range bindings {
		gen, ok := e.generations[b.Slot]
		if !ok || gen != b.Generation {
			return false
		}
	}
	return true
}

// cache is the implementation of the Cache interface.
type cache struct {
	backend backend.RendererBackend
	entries map[string]*cacheEntry

	// onRebuild, when set, is called after every successful build.
	onRebuild func(key string, rebuilds int)
}

// Cache holds one bind group per key and rebuilds it only when a bound resource's generation changes.
// The invariant it maintains: a returned bind group never references a resource whose generation is
// older than the one supplied in the request. It is called only from the render thread.
//
// Usage pattern:
//  1. The renderer ensures and uploads every texture the draw path needs
//  2. The renderer calls GetOrRebuild with the path's key and the current generations
//  3. The returned bind group is used for exactly the draw that follows
type Cache interface {
	// GetOrRebuild returns the cached bind group for key when every slot generation matches the last build.
	// Otherwise it builds a new bind group, releases the old one and records the new generations.
	//
	// Parameters:
	//   - key: the cache key, e.g. "passthrough/video"
	//   - layout: the pipeline's bind group layout
	//   - bindings: the resources to bind with their current generations
	//
	// Returns:
	//   - backend.BindGroup: a bind group consistent with bindings
	//   - error: an error if the backend could not build the bind group; the old entry is kept
	GetOrRebuild(key string, layout backend.BindGroupLayout, bindings []Binding) (backend.BindGroup, error)

	// Rebuilds returns how many times the bind group for key has been built.
	//
	// Parameters:
	//   - key: the cache key
	//
	// Returns:
	//   - int: the build count, 0 if key was never requested
	Rebuilds(key string) int

	// Invalidate releases the bind group for key so the next request rebuilds it. The build count is kept.
	//
	// Parameters:
	//   - key: the cache key
	Invalidate(key string)

	// Release releases every cached bind group.
	Release()
}

var _ Cache = &cache{}

// NewCache creates an empty Cache. Nothing is built until the first GetOrRebuild.
//
// Parameters:
//   - b: the backend used to create bind groups
//   - opts: a variadic list of CacheBuilderOption functions
//
// Returns:
//   - Cache: the new cache
func NewCache(b backend.RendererBackend, opts ...CacheBuilderOption) Cache {
	c := &cache{
		backend: b,
		entries: make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *cache) GetOrRebuild(key string, layout backend.BindGroupLayout, bindings []Binding) (backend.BindGroup, error) {
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{label: key}
		c.entries[key] = e
	}
	if e.matches(layout, bindings) {
		return e.bindGroup, nil
	}

	resources := make([]backend.BindGroupEntry, len(bindings))
	generations := make(map[uint32]uint64, len(bindings))
	for i, b := range bindings {
		resources[i] = b.Resource
		generations[b.Slot] = b.Generation
	}

	bg, err := c.backend.CreateBindGroup(key, layout, resources)
	if err != nil {
		return nil, fmt.Errorf("build bind group %q: %w", key, err)
	}
	if e.bindGroup != nil {
		e.bindGroup.Release()
	}
	e.bindGroup = bg
	e.layout = layout
	e.generations = generations
	e.rebuilds++

	if c.onRebuild != nil {
		c.onRebuild(key, e.rebuilds)
	}
	return bg, nil
}

func (c *cache) Rebuilds(key string) int {
	if e, ok := c.entries[key]; ok {
		return e.rebuilds
	}
	return 0
}

func (c *cache) Invalidate(key string) {
	e, ok := c.entries[key]
	if !ok || e.bindGroup == nil {
		return
	}
	e.bindGroup.Release()
	e.bindGroup = nil
	e.generations = nil
}

func (c *cache) Release() {
	for key, e := range c.entries {
		if e.bindGroup != nil {
			e.bindGroup.Release()
		}
		delete(c.entries, key)
	}
}
