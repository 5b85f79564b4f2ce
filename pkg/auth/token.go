// Package auth obtains a GitHub access token through the OAuth device flow.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/trackscore/pkg/net"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	// DefaultScope grants read access to private repository contents.
	DefaultScope = "repo"
)

var (
	endpoint = github.Endpoint

	errNoClientID = errors.New("clientID is required")
)

// DeviceCode is the pending authorization the user completes in a browser.
type DeviceCode = oauth2.DeviceAuthResponse

func newConfig(clientID string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       endpoint.AuthURL,
			TokenURL:      endpoint.TokenURL,
			DeviceAuthURL: endpoint.DeviceAuthURL,
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

func withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, net.GetHTTPClient())
}

// GetDeviceCode starts the device flow for the OAuth app clientID.
func GetDeviceCode(ctx context.Context, clientID string, scopes ...string) (*DeviceCode, error) {
	if clientID == "" {
		return nil, errNoClientID
	}

	dc, err := newConfig(clientID, scopes...).DeviceAuth(withClient(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get device code: %w", err)
	}
	return dc, nil
}

// GetToken polls until the user approves code, the code expires or ctx is
// done, and returns the access token.
func GetToken(ctx context.Context, clientID string, code *DeviceCode, scopes ...string) (string, error) {
	if clientID == "" {
		return "", errNoClientID
	}

	if code == nil {
		return "", errors.New("device code is nil")
	}

	t, err := newConfig(clientID, scopes...).DeviceAccessToken(withClient(ctx), code)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}

	if t.AccessToken == "" {
		return "", errors.New("access token is empty")
	}

	return t.AccessToken, nil
}
