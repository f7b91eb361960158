package profile

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"recast/internal/logging"
	"recast/internal/services"
)

// Entry is one catalog element: a bare profile, or a branded device group.
// An empty Profiles slice is legal for groups and registers the brand as
// known but empty.
type Entry struct {
	Brand    string
	Profiles []Profile
}

// Bare wraps a single unbranded profile.
func Bare(p Profile) Entry {
	return Entry{Profiles: []Profile{p}}
}

// Group wraps profiles under a device brand.
func Group(brand string, profiles ...Profile) Entry {
	return Entry{Brand: brand, Profiles: profiles}
}

// Registry indexes profiles by identifier and by brand. Identifiers are
// unique; re-adding one replaces the previous profile everywhere, including
// its old brand listing. Reads and writes are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	profiles map[string]Profile
	byBrand  map[string][]Profile
	brandOf  map[string]string
}

// NewRegistry builds an empty registry. The logger may be nil.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logging.NewComponentLogger(logger, "profiles"),
		profiles: make(map[string]Profile),
		byBrand:  make(map[string][]Profile),
		brandOf:  make(map[string]string),
	}
}

// Startup populates the registry in the fixed boot order: the builtin
// catalog first, then any bundles under dir so user definitions override
// builtins.
func (r *Registry) Startup(dir string) error {
	for _, entry := range Builtins() {
		r.AddEntry(entry)
	}
	if dir == "" {
		return nil
	}
	return r.LoadBundles(dir)
}

// Add inserts or overwrites a single unbranded profile.
func (r *Registry) Add(p Profile) {
	r.AddEntry(Bare(p))
}

// AddEntry ingests one catalog entry.
func (r *Registry) AddEntry(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byBrand[entry.Brand]; !ok {
		r.byBrand[entry.Brand] = nil
	}
	for _, p := range entry.Profiles {
		if p == nil {
			continue
		}
		r.addLocked(p, entry.Brand)
	}
}

func (r *Registry) addLocked(p Profile, brand string) {
	id := p.ID()
	if old, ok := r.profiles[id]; ok {
		oldBrand := r.brandOf[id]
		r.byBrand[oldBrand] = removeProfile(r.byBrand[oldBrand], old)
		if r.logger != nil {
			r.logger.Debug("profile replaced", "profile", id, "brand", brand)
		}
	}
	r.profiles[id] = p
	r.brandOf[id] = brand
	r.byBrand[brand] = append(r.byBrand[brand], p)
}

func removeProfile(list []Profile, p Profile) []Profile {
	for i, candidate := range list {
		if candidate == p {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// List returns every registered profile ordered by identifier.
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ByID resolves an identifier. Unknown identifiers report
// services.ErrNotFound.
func (r *Registry) ByID(id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: profile %q", services.ErrNotFound, id)
	}
	return p, nil
}

// ProfilesForBrand returns the profiles registered under brand in load
// order. The bool distinguishes an unknown brand (false) from a known brand
// that currently has no profiles (true with an empty slice). The empty brand
// name addresses the unbranded profiles.
func (r *Registry) ProfilesForBrand(brand string) ([]Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.byBrand[brand]
	if !ok {
		return nil, false
	}
	out := make([]Profile, len(list))
	copy(out, list)
	return out, true
}

// BrandOf reports the brand a profile was registered under. The bool is
// false for unknown identifiers; an empty brand with true means unbranded.
func (r *Registry) BrandOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	brand, ok := r.brandOf[id]
	return brand, ok
}

// Brands returns every known non-empty brand name, sorted.
func (r *Registry) Brands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byBrand))
	for brand := range r.byBrand {
		if brand == "" {
			continue
		}
		out = append(out, brand)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
