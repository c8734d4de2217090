package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/craftlab/ai-gateway/internal/quota"
	"github.com/stretchr/testify/require"
)

func testPolicy() *Policy {
	return &Policy{
		Scope: []string{"/api/"},
		Routes: []RouteRule{
			{Prefix: "/api/v1/posters", Category: "ai_generation", Service: "poster_generation"},
			{Prefix: "/api/v1/templates", Method: "GET", Category: "browse"},
		},
		Limits: map[string][]LimitRule{
			"ai_generation": {
				{Name: "burst", MaxRequests: 10, WindowSeconds: 60},
				{Name: "sustained", MaxRequests: 100, WindowSeconds: 3600},
			},
			"general": {
				{Name: "default", MaxRequests: 60, WindowSeconds: 60},
			},
		},
	}
}

func TestPolicyResolve(t *testing.T) {
	policy := testPolicy()

	// out of scope entirely
	_, inScope := policy.Resolve("/health", "GET")
	require.False(t, inScope)

	// first matching route wins
	route, inScope := policy.Resolve("/api/v1/posters/create", "POST")
	require.True(t, inScope)
	require.Equal(t, "ai_generation", route.Category)
	require.Equal(t, "poster_generation", route.Service)

	// method-restricted route only matches its method
	route, inScope = policy.Resolve("/api/v1/templates", "GET")
	require.True(t, inScope)
	require.Equal(t, "browse", route.Category)
	require.Empty(t, route.Service)

	route, inScope = policy.Resolve("/api/v1/templates", "POST")
	require.True(t, inScope)
	require.Equal(t, GeneralCategory, route.Category)

	// in scope but no route rule: general category, no service
	route, inScope = policy.Resolve("/api/v2/anything", "GET")
	require.True(t, inScope)
	require.Equal(t, GeneralCategory, route.Category)
	require.Empty(t, route.Service)
}

func TestPolicyRules(t *testing.T) {
	policy := testPolicy()

	rules := policy.Rules("ai_generation")
	require.Len(t, rules, 2)
	require.Equal(t, "burst", rules[0].Name)
	require.Equal(t, 10, rules[0].MaxRequests)
	require.Equal(t, time.Minute, rules[0].Window)

	// unconfigured category falls back to general
	rules = policy.Rules("browse")
	require.Len(t, rules, 1)
	require.Equal(t, 60, rules[0].MaxRequests)

	// no general either: built-in default applies
	policy.Limits = nil
	rules = policy.Rules("browse")
	require.Len(t, rules, 1)
	require.Equal(t, "default", rules[0].Name)
	require.Equal(t, 60, rules[0].MaxRequests)
	require.Equal(t, time.Minute, rules[0].Window)
}

func TestLoadPolicyFromYAML(t *testing.T) {
	content := `
scope:
  - /api/
routes:
  - prefix: /api/v1/posters
    category: ai_generation
    service: poster_generation
limits:
  ai_generation:
    - name: burst
      max_requests: 10
      window_seconds: 60
plans:
  free:
    poster_generation:
      monthly: 10
      daily: 2
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Equal(t, []string{"/api/"}, policy.Scope)
	require.Len(t, policy.Routes, 1)
	require.Equal(t, quota.Caps{Monthly: 10, Daily: 2}, policy.Plans.Caps("free", "poster_generation"))
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty scope": `
routes:
  - prefix: /api/v1/posters
    category: ai_generation
`,
		"missing category": `
scope:
  - /api/
routes:
  - prefix: /api/v1/posters
`,
		"non-positive limit": `
scope:
  - /api/
limits:
  ai_generation:
    - name: burst
      max_requests: 0
      window_seconds: 60
`,
		"duplicate rule name": `
scope:
  - /api/
limits:
  ai_generation:
    - name: burst
      max_requests: 10
      window_seconds: 60
    - name: burst
      max_requests: 100
      window_seconds: 3600
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := LoadPolicy(path)
			require.Error(t, err)
		})
	}
}
