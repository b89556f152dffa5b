package models

// Actor is the moderator performing an action, as asserted by the caller.
type Actor struct {
	Identity     string `json:"identity"`
	Role         string `json:"role,omitempty"`
	Districts    []int  `json:"districts,omitempty"`
	AllDistricts bool   `json:"allDistricts,omitempty"`
}
