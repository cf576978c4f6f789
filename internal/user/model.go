package user

import "time"

const fileCategoryProfile = 1

type SignupInput struct {
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	Nickname         string  `json:"nickname"`
	ProfileImagePath *string `json:"profileImagePath"`
}

type SignupResult struct {
	UserID         int64  `json:"userId"`
	ProfileImageID *int64 `json:"profileImageId"`
}

type Profile struct {
	UserID           int64     `json:"userId"`
	Email            string    `json:"email"`
	Nickname         string    `json:"nickname"`
	ProfileImagePath *string   `json:"profileImagePath"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type UpdateInput struct {
	Nickname         string  `json:"nickname"`
	ProfileImagePath *string `json:"profileImagePath"`
}

type passwordInput struct {
	Password string `json:"password"`
}
