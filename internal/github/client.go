package github

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v60/github"
)

// Auth selects how the client authenticates. Mode is "app", "token" or empty
// for anonymous access.
type Auth struct {
	Mode           string
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKey     []byte
	PrivateKeyPath string
}

// NewClient creates a GitHub API client for the given auth mode. Anonymous
// clients work for public repositories at a much lower rate limit.
func NewClient(a Auth) (*gogithub.Client, error) {
	switch a.Mode {
	case "app":
		return NewAppClient(a.AppID, a.InstallationID, a.PrivateKey, a.PrivateKeyPath)
	case "token":
		if a.Token == "" {
			return nil, fmt.Errorf("github token auth requires a token")
		}
		return gogithub.NewClient(nil).WithAuthToken(a.Token), nil
	case "":
		return gogithub.NewClient(nil), nil
	default:
		return nil, fmt.Errorf("unsupported github auth: %q", a.Mode)
	}
}

// NewAppClient creates a GitHub API client authenticated as a GitHub App
// installation. ghinstallation handles the JWT and installation tokens.
//
// privateKey can be either:
//   - Raw PEM bytes (begins with "-----BEGIN")
//   - Base64-encoded PEM bytes
//
// If privateKey is empty the key is read from privateKeyPath.
func NewAppClient(appID, installationID int64, privateKey []byte, privateKeyPath string) (*gogithub.Client, error) {
	key, err := resolvePrivateKey(privateKey, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("resolving private key: %w", err)
	}

	transport, err := ghinstallation.New(http.DefaultTransport, appID, installationID, key)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}

	return gogithub.NewClient(&http.Client{Transport: transport}), nil
}

// resolvePrivateKey returns PEM bytes from an inline (raw or base64) key or
// from a file.
func resolvePrivateKey(key []byte, keyPath string) ([]byte, error) {
	if s := strings.TrimSpace(string(key)); s != "" {
		if strings.HasPrefix(s, "-----BEGIN") {
			return []byte(s), nil
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			decoded, err = base64.URLEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("private key is neither PEM nor valid base64: %w", err)
			}
		}
		return decoded, nil
	}

	if keyPath != "" {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key file %s: %w", keyPath, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("no private key provided: set private_key or private_key_path")
}
