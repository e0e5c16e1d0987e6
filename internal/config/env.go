package config

import (
	"os"
	"strings"
)

// LoadEnvFile sets environment variables from a KEY=VALUE file.
// Missing files are ignored and existing variables are never overridden.
// Returns the keys that were set.
func LoadEnvFile(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil // File doesn't exist, use system env vars
	}

	var set []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
			set = append(set, key)
		}
	}
	return set
}

// ApplyOverrides replaces storage settings with non-empty values.
// Used for flags and environment variables, which take precedence over the file.
func (c *Config) ApplyOverrides(postgresDSN, clickhouseDSN string) {
	if postgresDSN != "" {
		c.Storage.PostgresDSN = postgresDSN
	}
	if clickhouseDSN != "" {
		c.Storage.ClickhouseDSN = clickhouseDSN
	}
}
