// Package models contains the domain records shared by storage, services and
// handlers: users, subscriptions, usage records and normalized billing events.
package models

import "time"

// User is an account known to the billing service. ID is the subject issued by
// the external identity provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"` // admin or user
	CreatedAt time.Time `json:"created_at"`
}
