package domain

import "time"

// Policy represents an operator-supplied authentication policy in Rego.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
