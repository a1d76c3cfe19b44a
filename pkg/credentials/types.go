package credentials

// Credentials represents the stored bearer tokens in credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Endpoints map[string]EndpointCredential `toml:"endpoints"`
}

// EndpointCredential holds the bearer token for a single chat endpoint.
type EndpointCredential struct {
	Token string `toml:"token"`
}
