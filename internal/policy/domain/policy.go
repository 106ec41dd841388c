package domain

import "time"

// Policy is a Rego module that replaces the default permission policy for one academia.
type Policy struct {
	AcademiaID string
	Rules      string
	Enabled    bool
	UpdatedAt  time.Time
}
