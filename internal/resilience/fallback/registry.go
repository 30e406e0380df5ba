package fallback

import (
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nexusfab/fabric/internal/util/pattern"
)

// Handler returns a canned degraded response for method, or nil if the
// method is unhandled.
type Handler func(method string, payload interface{}) interface{}

// RuleMatch is one ordered (glob pattern, handler) rule, matched against the
// method name with the same `*`-wildcard matcher the teacher uses for
// routing requests to model profiles.
type RuleMatch struct {
	Pattern string
	Handler Handler
}

// Registry resolves a fallback in order: cache, then per-service handler,
// then rule chain; first non-null result wins.
type Registry struct {
	Cache          *Cache
	ServiceHandler map[string]Handler
	Rules          []RuleMatch
	group          singleflight.Group
}

func NewRegistry(cacheMaxSize int) *Registry {
	return &Registry{
		Cache:          NewCache(cacheMaxSize),
		ServiceHandler: make(map[string]Handler),
	}
}

// Resolve returns the first non-null fallback for (service, method, payload),
// or nil to mean "surface the original failure". Concurrent identical cache
// misses for the same key are collapsed via singleflight so a cache stampede
// doesn't fan out into N handler calls.
func (r *Registry) Resolve(service, method string, payload interface{}) (interface{}, error) {
	key, err := Key(service+"."+method, payload)
	if err != nil {
		return nil, err
	}

	if v, ok := r.Cache.Get(key); ok {
		return v, nil
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		if h, ok := r.ServiceHandler[service]; ok {
			if v := h(method, payload); v != nil {
				return v, nil
			}
		}
		for _, rule := range r.Rules {
			if pattern.MatchesGlob(method, rule.Pattern) {
				if v := rule.Handler(method, payload); v != nil {
					return v, nil
				}
			}
		}
		return nil, nil
	})
	return result, err
}

// CacheResult stores a successful response under (service, method, payload)
// for subsequent fallback. Opt-in per method by the caller.
func (r *Registry) CacheResult(service, method string, payload, result interface{}, ttl time.Duration) error {
	key, err := Key(service+"."+method, payload)
	if err != nil {
		return err
	}
	r.Cache.Set(key, result, ttl)
	return nil
}
