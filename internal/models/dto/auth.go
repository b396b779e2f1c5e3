package dto

import "github.com/hongminglow/wallet-auth/internal/models"

// CredentialsRequest is the inbound wallet claim.
type CredentialsRequest struct {
	WalletAddress     string `json:"walletAddress" validate:"max=42"`
	Username          string `json:"username" validate:"omitempty,max=255"`
	ProfilePictureURL string `json:"profilePictureUrl" validate:"omitempty,max=2048"`
}

// Credentials converts the request into the provider's input.
func (r CredentialsRequest) Credentials() models.Credentials {
	return models.Credentials{
		WalletAddress:     r.WalletAddress,
		Username:          r.Username,
		ProfilePictureURL: r.ProfilePictureURL,
	}
}

// SignInResponse pairs the issued token with the session it encodes.
type SignInResponse struct {
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
}

// ActiveUsersResponse lists users seen within a login window.
type ActiveUsersResponse struct {
	Count int           `json:"count"`
	Users []models.User `json:"users"`
}
