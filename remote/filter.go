package remote

import "fmt"

// Filter narrows and orders a collection query. The zero value selects the
// whole collection ordered by creation time.
type Filter struct {
	// Field/Equals select documents whose domain field equals the value.
	Field  string
	Equals string

	// OrderBy names the domain field defining the result order; empty
	// means the store's creation-time order. The manager never re-orders
	// locally.
	OrderBy    string
	Descending bool
}

// Key is the canonical registry key for the filter. Registrations sharing a
// key share one upstream query per change notification.
func (f Filter) Key() string {
	return fmt.Sprintf("%s=%s/%s/%t", f.Field, f.Equals, f.OrderBy, f.Descending)
}
