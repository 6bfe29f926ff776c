package domain

import (
	"strings"
	"time"
)

// User is the credential record. CurrentRefreshToken is the single refresh
// token that is currently valid for the account, empty when signed out.
type User struct {
	ID                  string
	Name                string
	Email               string // normalised with NormalizeEmail
	PasswordHash        string // argon2 encoded
	CurrentRefreshToken string
	RefreshExpiresAt    *time.Time // expiry of CurrentRefreshToken (nullable)
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicUser is the projection of a User that is safe to send to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the credential fields.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// NormalizeEmail lower-cases and trims an email so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
