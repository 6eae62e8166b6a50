package secrets

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the engine's secrets in the OS keychain.
	KeyringService = "leadboard"

	EnvClientSecret = "LEADBOARD_CLIENT_SECRET"
	EnvRefreshToken = "LEADBOARD_REFRESH_TOKEN"
)

var ErrNoCredentials = errors.New("oauth credentials not found (set them in keychain or via env)")

// OAuth holds what the refresh-token exchange needs besides the client id.
type OAuth struct {
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

func (o OAuth) complete() bool {
	return strings.TrimSpace(o.ClientSecret) != "" && strings.TrimSpace(o.RefreshToken) != ""
}

// GetOAuth reads the keychain entry first, then the environment.
func GetOAuth(keyringAccount string) (OAuth, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		raw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(raw) != "" {
			var o OAuth
			if jerr := json.Unmarshal([]byte(raw), &o); jerr == nil && o.complete() {
				return o, nil
			}
		}
	}

	o := OAuth{
		ClientSecret: strings.TrimSpace(os.Getenv(EnvClientSecret)),
		RefreshToken: strings.TrimSpace(os.Getenv(EnvRefreshToken)),
	}
	if o.complete() {
		return o, nil
	}
	return OAuth{}, ErrNoCredentials
}

func SetOAuth(keyringAccount string, o OAuth) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(o.ClientSecret) == "" {
		return errors.New("client secret is empty")
	}
	if strings.TrimSpace(o.RefreshToken) == "" {
		return errors.New("refresh token is empty")
	}
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, keyringAccount, string(b))
}

func DeleteOAuth(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}
