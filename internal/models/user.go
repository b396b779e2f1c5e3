package models

import "time"

// DefaultUsername is the display name persisted when a wallet logs in without one.
const DefaultUsername = "Anonymous"

// User is the persisted profile of a wallet holder.
type User struct {
	ID                int64     `json:"id"`
	WalletAddress     string    `json:"walletAddress"`
	Username          string    `json:"username"`
	ProfilePictureURL string    `json:"profilePictureUrl"`
	LastLoginAt       time.Time `json:"lastLoginAt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
