package repository

import (
	"time"

	"MarketBrief/internal/domain/models"
)

// DefaultMaxAgeMinutes is the default freshness window.
const DefaultMaxAgeMinutes = 120

// AssetFilter selects eligible rows of the asset table.
type AssetFilter struct {
	AssetTypes    []models.AssetType
	MaxAgeMinutes int
	// AsOf is the reference instant for freshness; zero means now.
	AsOf time.Time
}

// Normalize fills defaults and returns a copy.
func (f AssetFilter) Normalize(now func() time.Time) AssetFilter {
	if f.MaxAgeMinutes <= 0 {
		f.MaxAgeMinutes = DefaultMaxAgeMinutes
	}
	if f.AsOf.IsZero() {
		f.AsOf = now()
	}
	return f
}

// MaxAge returns the freshness window as a duration.
func (f AssetFilter) MaxAge() time.Duration {
	return time.Duration(f.MaxAgeMinutes) * time.Minute
}

// Cutoff is the oldest eligible lastUpdated value.
func (f AssetFilter) Cutoff() time.Time {
	return f.AsOf.Add(-f.MaxAge())
}

// Accepts reports whether a record passes the type and freshness filters.
// The filter must be normalized.
func (f AssetFilter) Accepts(r models.AssetRecord) bool {
	if !r.IsFresh(f.AsOf, f.MaxAge()) {
		return false
	}
	for _, t := range f.AssetTypes {
		if r.AssetType == t {
			return true
		}
	}
	return false
}

// TypeStrings returns the asset types as plain strings for query binding.
func (f AssetFilter) TypeStrings() []string {
	out := make([]string, len(f.AssetTypes))
	for i, t := range f.AssetTypes {
		out[i] = string(t)
	}
	return out
}
