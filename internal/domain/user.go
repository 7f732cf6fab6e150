package domain

import "time"

// User is a marketplace participant; owners and bidders are both users.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
