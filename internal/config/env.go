package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFiles reads .env files from the working directory and the user's
// config directories. Variables already set in the environment win, and the
// first file to define a key wins over later ones.
func LoadEnvFiles() error {
	paths := []string{"./.env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".myrai", ".env"),
			filepath.Join(home, ".config", "myrai-care", ".env"),
		)
	}
	return loadEnvFiles(paths...)
}

func loadEnvFiles(paths ...string) error {
	var found []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return godotenv.Load(found...)
}

// envAliases maps canonical MYRAI_* keys to the names vendors document
var envAliases = map[string][]string{
	"MYRAI_LLM_PROVIDERS_OPENAI_API_KEY":     {"OPENAI_API_KEY"},
	"MYRAI_LLM_PROVIDERS_OPENROUTER_API_KEY": {"OPENROUTER_API_KEY"},
	"MYRAI_LLM_PROVIDERS_DEEPSEEK_API_KEY":   {"DEEPSEEK_API_KEY"},
	"MYRAI_LLM_PROVIDERS_KIMI_API_KEY":       {"KIMI_API_KEY", "MOONSHOT_API_KEY"},
	"MYRAI_STORAGE_REDIS_ADDR":               {"REDIS_ADDR", "REDIS_URL"},
}

// ResolveEnvWithAliases returns the canonical variable, else the first alias set
func ResolveEnvWithAliases(canonicalKey string) string {
	if val := os.Getenv(canonicalKey); val != "" {
		return val
	}
	for _, alias := range envAliases[canonicalKey] {
		if val := os.Getenv(alias); val != "" {
			return val
		}
	}
	return ""
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
