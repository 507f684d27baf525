package domain

import "time"

// AccessToken describes an issued bearer token.
type AccessToken struct {
	Value     string
	ID        string
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
