// Package domain contains core domain types for the attendance service.
package domain

import (
	"time"
)

// Student is attendee reference data. The core looks students up but never
// creates them outside of seeding.
type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"roll_number"`
	CreatedAt  time.Time `json:"created_at"`
}

// Role distinguishes the two kinds of logged-in principals.
type Role string

const (
	RolePresenter Role = "presenter"
	RoleAttendee  Role = "attendee"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	Role        Role   `json:"role"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// IsPresenter returns true for the presenter principal.
func (p *Principal) IsPresenter() bool {
	return p != nil && p.Role == RolePresenter
}
