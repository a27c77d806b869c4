// Package region provides the static directory of provider endpoints.
//
// The provider operates identical deployments in several regions; only
// network routing differs. Region selection is a routing convenience,
// not a correctness gate: unknown selectors fall back to the configured
// default rather than failing.
package region

import "sort"

// Region describes one provider deployment. Values are immutable after
// directory construction.
type Region struct {
	// ID is the selector callers use ("global", "cn", ...).
	ID string

	// DisplayName is a human-readable label for listings.
	DisplayName string

	// APIBaseURL is the HTTPS base for all provider calls in this region.
	APIBaseURL string

	// HostHeader is the Host value the provider's edge requires. Some
	// regions front the same origin through different entry hosts.
	HostHeader string
}

// Directory resolves region selectors to endpoints. Read-only after
// construction; safe for concurrent use.
type Directory struct {
	regions   map[string]Region
	defaultID string
}

// NewDirectory builds a directory from the given regions. defaultID must
// name one of them; Resolve falls back to it for unknown selectors.
func NewDirectory(defaultID string, regions ...Region) *Directory {
	m := make(map[string]Region, len(regions))
	for _, r := range regions {
		m[r.ID] = r
	}
	if _, ok := m[defaultID]; !ok && len(regions) > 0 {
		defaultID = regions[0].ID
	}
	return &Directory{regions: m, defaultID: defaultID}
}

// Defaults returns the built-in directory for the reference deployment.
func Defaults(defaultID string) *Directory {
	return NewDirectory(defaultID,
		Region{
			ID:          "global",
			DisplayName: "Global",
			APIBaseURL:  "https://api.inklift-compute.ai",
			HostHeader:  "api.inklift-compute.ai",
		},
		Region{
			ID:          "cn",
			DisplayName: "China Mainland",
			APIBaseURL:  "https://api.inklift-compute.cn",
			HostHeader:  "api.inklift-compute.cn",
		},
	)
}

// Resolve returns the region for id, or the default region when id is
// empty or unknown. It never fails.
func (d *Directory) Resolve(id string) Region {
	if r, ok := d.regions[id]; ok {
		return r
	}
	return d.regions[d.defaultID]
}

// List returns all regions in the directory, sorted by ID.
func (d *Directory) List() []Region {
	out := make([]Region, 0, len(d.regions))
	for _, r := range d.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultID returns the fallback region selector.
func (d *Directory) DefaultID() string {
	return d.defaultID
}
