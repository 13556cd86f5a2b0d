package domain

import "time"

// Plan is one cached provider-side priceable item (a data bundle, TV bouquet
// or internet package). (Service, Provider, Code) is unique; a plan is only
// trusted while SyncedAt falls inside the catalog freshness window.
type Plan struct {
	ID       int64          `json:"-"`
	Service  string         `json:"-"`
	Provider string         `json:"-"`
	Code     string         `json:"id"`
	Name     string         `json:"name"`
	Price    int64          `json:"price"` // kobo
	Meta     map[string]any `json:"meta,omitempty"`
	SyncedAt time.Time      `json:"-"`
}
