package service

const (
	DefaultPageLimit       = 50
	DefaultLookupScanLimit = 1000
	RecentOrdersLimit      = 10
)

// ListOptions filters catalog and customer listings. The zero value lists
// active records only, without a name filter.
type ListOptions struct {
	Search          string
	IncludeInactive bool
}

// PageOptions bounds event listings. Limit <= 0 means DefaultPageLimit.
type PageOptions struct {
	Limit int
}

func (o PageOptions) limit(fallback int) int {
	if o.Limit > 0 {
		return o.Limit
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultPageLimit
}
