package quota

// DefaultTier is the plan tier assumed when an organization has no
// resolvable tier or names one that is not configured.
const DefaultTier = "free"

// DefaultService is the fallback caps entry inside a tier, consulted
// when a generation service has no entry of its own.
const DefaultService = "default"

// Caps holds the usage ceilings for one (tier, service) pair. A zero
// cap means unlimited for that window.
type Caps struct {
	Monthly int `yaml:"monthly" json:"monthly"`
	Daily   int `yaml:"daily" json:"daily"`
}

// PlanTable maps plan tier -> generation service -> caps. Loaded once
// at startup and immutable afterwards.
type PlanTable map[string]map[string]Caps

// Caps resolves the ceilings for a tier and service. Unknown tiers and
// services fall back to the free tier's entries; the lookup never fails
// on unrecognized input.
func (p PlanTable) Caps(tier, service string) Caps {
	for _, t := range []string{tier, DefaultTier} {
		services, ok := p[t]
		if !ok {
			continue
		}
		if caps, ok := services[service]; ok {
			return caps
		}
		if caps, ok := services[DefaultService]; ok {
			return caps
		}
	}

	return Caps{}
}
