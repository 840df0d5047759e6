package models

// Profile is the directory document for a user. Cached copies are
// never authoritative; readers refresh on demand.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Online      bool   `json:"online,omitempty"`
	UpdatedTS   int64  `json:"updated_ts,omitempty"`
}
