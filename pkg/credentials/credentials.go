// Package credentials resolves the bearer token attached to chat requests.
//
// A token can come from the environment (AZURE_AD_TOKEN), from a token file
// that is re-read whenever it changes, or from credentials.toml in the
// .pulse/ directory, keyed by endpoint URL.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/pulse/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// TokenEnvVar is the environment variable holding a static bearer token.
const TokenEnvVar = "AZURE_AD_TOKEN"

// Manager manages reading and writing credentials.toml in the .pulse/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .pulse/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	path, err := mgr.ddm.File(override, credentialsFile)
	if err != nil {
		return nil, err
	}
	mgr.targetPath = path

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version:   currentVersion,
				Endpoints: make(map[string]EndpointCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Endpoints == nil {
		creds.Endpoints = make(map[string]EndpointCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetToken stores a bearer token for the given endpoint.
func (m *Manager) SetToken(endpoint, token string) error {
	endpoint = NormalizeEndpoint(endpoint)
	if endpoint == "" {
		return errors.New("endpoint cannot be empty")
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Endpoints[endpoint] = EndpointCredential{Token: token}

	return m.Save(creds)
}

// GetToken returns the stored token for the given endpoint.
// Returns an empty string if no token is stored.
func (m *Manager) GetToken(endpoint string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Endpoints[NormalizeEndpoint(endpoint)].Token, nil
}

// RemoveToken deletes the stored token for an endpoint.
func (m *Manager) RemoveToken(endpoint string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Endpoints, NormalizeEndpoint(endpoint))

	return m.Save(creds)
}

// ListEndpoints returns the endpoints that have stored tokens.
func (m *Manager) ListEndpoints() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	endpoints := make([]string, 0, len(creds.Endpoints))
	for name := range creds.Endpoints {
		endpoints = append(endpoints, name)
	}

	sort.Strings(endpoints)

	return endpoints, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// NormalizeEndpoint trims whitespace and trailing slashes so the same
// endpoint always maps to the same key.
func NormalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}
