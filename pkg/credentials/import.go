package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ImportedKey is an API key discovered in another agent CLI's auth file.
type ImportedKey struct {
	Provider string
	APIKey   string
	Source   string // path of the auth file the key came from
}

// DiscoverAgentKeys scans the auth files of locally installed agent CLIs
// (codex, opencode) and returns any provider API keys found. Unreadable or
// malformed files are skipped.
func DiscoverAgentKeys() []ImportedKey {
	var keys []ImportedKey

	if data, path := readCodexAuthFile(); data != nil {
		if key, ok := extractCodexAPIKey(data); ok {
			keys = append(keys, ImportedKey{Provider: "openai", APIKey: key, Source: path})
		}
	}

	if data, path := readOpenCodeAuthFile(); data != nil {
		for _, provider := range SupportedProviders() {
			if key, ok := extractOpenCodeAPIKey(data, provider); ok {
				keys = append(keys, ImportedKey{Provider: provider, APIKey: key, Source: path})
			}
		}
	}

	return keys
}

// readCodexAuthFile reads ~/.codex/auth.json and returns its contents and path.
// Returns nil, "" if the file cannot be read.
func readCodexAuthFile() ([]byte, string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, ""
	}

	authPath := filepath.Join(home, ".codex", "auth.json")
	data, err := os.ReadFile(authPath)
	if err != nil {
		return nil, ""
	}

	return data, authPath
}

// readOpenCodeAuthFile reads the opencode auth file at
// $XDG_DATA_HOME/opencode/auth.json, defaulting to
// ~/.local/share/opencode/auth.json. Returns nil, "" if it cannot be read.
func readOpenCodeAuthFile() ([]byte, string) {
	var dataDir string
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dataDir = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, ""
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	authPath := filepath.Join(dataDir, "opencode", "auth.json")
	data, err := os.ReadFile(authPath)
	if err != nil {
		return nil, ""
	}

	return data, authPath
}

// extractCodexAPIKey pulls OPENAI_API_KEY out of the codex auth JSON.
func extractCodexAPIKey(data []byte) (string, bool) {
	var auth struct {
		OpenAIAPIKey string `json:"OPENAI_API_KEY"`
	}
	if err := json.Unmarshal(data, &auth); err != nil {
		return "", false
	}
	if auth.OpenAIAPIKey == "" {
		return "", false
	}
	return auth.OpenAIAPIKey, true
}

// extractOpenCodeAPIKey pulls an API-type key for the given provider out of
// the opencode auth JSON. OAuth entries are ignored.
func extractOpenCodeAPIKey(data []byte, provider string) (string, bool) {
	var auth map[string]struct {
		Type string `json:"type"`
		Key  string `json:"key"`
	}
	if err := json.Unmarshal(data, &auth); err != nil {
		return "", false
	}

	entry, ok := auth[provider]
	if !ok || entry.Type != "api" || entry.Key == "" {
		return "", false
	}
	return entry.Key, true
}
