package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/craftlab/ai-gateway/internal/quota"
	"github.com/craftlab/ai-gateway/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

// GeneralCategory is assigned to in-scope paths that match no route
// rule. It carries no generation service, so only rate limits apply.
const GeneralCategory = "general"

// Policy is the static admission policy: which paths are in AI-service
// scope, how they map to endpoint categories and generation services,
// the limit rules per category, and the quota plan table. Loaded once
// at process start, immutable at runtime.
type Policy struct {
	Scope  []string               `yaml:"scope"`
	Routes []RouteRule            `yaml:"routes"`
	Limits map[string][]LimitRule `yaml:"limits"`
	Plans  quota.PlanTable        `yaml:"plans"`
}

// RouteRule maps a path prefix and method to an endpoint category and
// generation service. Rules are ordered; the first match wins. An empty
// method matches any method.
type RouteRule struct {
	Prefix   string `yaml:"prefix"`
	Method   string `yaml:"method"`
	Category string `yaml:"category"`
	Service  string `yaml:"service"`
}

type LimitRule struct {
	Name          string `yaml:"name"`
	MaxRequests   int    `yaml:"max_requests"`
	WindowSeconds int    `yaml:"window_seconds"`
}

// Route is the resolved classification of one request.
type Route struct {
	Category string
	Service  string
}

func LoadPolicy(path string) (*Policy, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var policy Policy
	if err := yaml.Unmarshal(file, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", path, err)
	}

	if err := policy.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}

	return &policy, nil
}

func (p *Policy) validate() error {
	if len(p.Scope) == 0 {
		return fmt.Errorf("scope must list at least one path prefix")
	}

	for i, route := range p.Routes {
		if route.Prefix == "" {
			return fmt.Errorf("route %d: prefix is required", i)
		}
		if route.Category == "" {
			return fmt.Errorf("route %d (%s): category is required", i, route.Prefix)
		}
	}

	for category, rules := range p.Limits {
		names := make(map[string]bool)
		for _, rule := range rules {
			if rule.MaxRequests <= 0 || rule.WindowSeconds <= 0 {
				return fmt.Errorf("limit %s/%s: max_requests and window_seconds must be positive", category, rule.Name)
			}
			if names[rule.Name] {
				return fmt.Errorf("limit %s/%s: duplicate rule name", category, rule.Name)
			}
			names[rule.Name] = true
		}
	}

	return nil
}

// Resolve classifies a request. The second return is false when the
// path is outside AI-service scope entirely - those requests pass
// through the gateway untouched by admission control.
func (p *Policy) Resolve(path, method string) (Route, bool) {
	inScope := false
	for _, prefix := range p.Scope {
		if strings.HasPrefix(path, prefix) {
			inScope = true
			break
		}
	}
	if !inScope {
		return Route{}, false
	}

	for _, route := range p.Routes {
		if !strings.HasPrefix(path, route.Prefix) {
			continue
		}
		if route.Method != "" && !strings.EqualFold(route.Method, method) {
			continue
		}
		return Route{Category: route.Category, Service: route.Service}, true
	}

	return Route{Category: GeneralCategory}, true
}

// Rules returns the limit rules for a category, falling back to the
// general category's rules and finally a conservative built-in default
// so an unconfigured category is never unlimited.
func (p *Policy) Rules(category string) []ratelimit.Rule {
	for _, c := range []string{category, GeneralCategory} {
		if rules, ok := p.Limits[c]; ok && len(rules) > 0 {
			converted := make([]ratelimit.Rule, 0, len(rules))
			for _, rule := range rules {
				converted = append(converted, ratelimit.Rule{
					Name:        rule.Name,
					MaxRequests: rule.MaxRequests,
					Window:      time.Duration(rule.WindowSeconds) * time.Second,
				})
			}
			return converted
		}
	}

	return []ratelimit.Rule{{Name: "default", MaxRequests: 60, Window: time.Minute}}
}
