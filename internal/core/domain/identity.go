package domain

import "time"

// User is the minimal account projection this service needs: enough to verify
// credentials and anchor sessions. Profile data lives with the main platform.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}
