package uptime

import (
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// ZoneCache resolves IANA zone names to locations, memoizing successful
// lookups. time.LoadLocation reads the zone database from disk on every
// call, which adds up across a universe of tens of thousands of stores.
type ZoneCache struct {
	cache    *otter.Cache[string, *time.Location]
	fallback *time.Location
}

// NewZoneCache builds a cache whose fallback zone is used for stores with a
// missing or unknown timezone row.
func NewZoneCache(fallbackZone string) (*ZoneCache, error) {
	loc, err := time.LoadLocation(fallbackZone)
	if err != nil {
		return nil, fmt.Errorf("fallback timezone %q: %w", fallbackZone, err)
	}
	return &ZoneCache{
		cache: otter.Must(&otter.Options[string, *time.Location]{
			MaximumSize:     512,
			InitialCapacity: 64,
		}),
		fallback: loc,
	}, nil
}

// Fallback returns the configured fallback location.
func (z *ZoneCache) Fallback() *time.Location {
	return z.fallback
}

// Resolve returns the location for a zone name. An empty name (no timezone
// row) returns the fallback with no error; an unknown name returns the
// fallback together with an error the caller can surface as a warning.
func (z *ZoneCache) Resolve(name string) (*time.Location, error) {
	if name == "" {
		return z.fallback, nil
	}
	if loc, ok := z.cache.GetIfPresent(name); ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return z.fallback, fmt.Errorf("unknown timezone %q", name)
	}
	z.cache.Set(name, loc)
	return loc, nil
}
