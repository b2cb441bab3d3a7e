package domain

import "time"

type User struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	PasswordHash string // argon2id PHC string, or bcrypt for carried-over rows
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the user as shown to clients and embedded in access tokens.
// It never carries the password digest.
type PublicUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Role:      u.Role,
	}
}
