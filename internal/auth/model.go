package auth

import "time"

type Account struct {
	ID               int64
	Email            string
	Nickname         string
	PasswordHash     string
	ProfileImagePath *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	UserID           int64      `json:"userId"`
	Email            string     `json:"email"`
	Nickname         string     `json:"nickname"`
	ProfileImagePath *string    `json:"profileImagePath"`
	SessionToken     string     `json:"sessionToken"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	DeletedAt        *time.Time `json:"deletedAt"`
}

type AuthStatus struct {
	UserID           int64   `json:"userId"`
	Email            string  `json:"email"`
	Nickname         string  `json:"nickname"`
	ProfileImagePath *string `json:"profileImagePath"`
	AuthStatus       bool    `json:"authStatus"`
}
