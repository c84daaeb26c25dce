package backend

import (
	"encoding/json"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
)

// User is the owner profile returned at sign-in.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Picture      string `json:"picture,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ParseUser decodes the user object of a sign-in response.
func ParseUser(raw []byte) (User, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, errors.Wrapf(errors.ErrInvalidRequest, "[backend ParseUser] %v", err)
	}
	return u, nil
}
