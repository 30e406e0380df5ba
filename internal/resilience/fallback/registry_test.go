package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CacheWinsOverHandler(t *testing.T) {
	r := NewRegistry(10)
	RegisterDefaultHandlers(r)

	err := r.CacheResult("planner", "HealthCheck", nil, "cached-health", time.Minute)
	require.NoError(t, err)

	v, err := r.Resolve("planner", "HealthCheck", nil)
	require.NoError(t, err)
	assert.Equal(t, "cached-health", v, "a cached response must win over the service handler")
}

func TestRegistry_FallsBackToServiceHandler(t *testing.T) {
	r := NewRegistry(10)
	RegisterDefaultHandlers(r)

	v, err := r.Resolve("executor", "Execute", map[string]string{"command": "ls"})
	require.NoError(t, err)
	require.NotNil(t, v)

	payload, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, -1, payload["exit_code"])
}

func TestRegistry_FallsBackToRuleChainWhenHandlerDeclines(t *testing.T) {
	r := NewRegistry(10)
	RegisterDefaultHandlers(r)
	r.Rules = append(r.Rules, RuleMatch{
		Pattern: "*Unknown*",
		Handler: func(method string, payload interface{}) interface{} {
			return "rule-matched"
		},
	})

	v, err := r.Resolve("planner", "SomeUnknownMethod", nil)
	require.NoError(t, err)
	assert.Equal(t, "rule-matched", v)
}

func TestRegistry_ResolvesToNilWhenNothingMatches(t *testing.T) {
	r := NewRegistry(10)

	v, err := r.Resolve("unknownservice", "Whatever", nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}
