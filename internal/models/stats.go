package models

// Stats is a point-in-time summary across all tables. It is informational
// only and may be served stale.
type Stats struct {
	Users             int64 `json:"users"`
	ActiveGroups      int64 `json:"active_groups"`
	Promotions        int64 `json:"promotions"`
	SharesOutstanding int64 `json:"shares_outstanding"`
	ReachEstimate     int64 `json:"reach_estimate"`
}
