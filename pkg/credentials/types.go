package credentials

// Credentials is the on-disk shape of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the stored key for one provider.
type ProviderCredential struct {
	APIKey string `toml:"api_key"`
}
