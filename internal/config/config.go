// Package config provides layered configuration loading for the engine.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/converse-ai/converse/pkg/types"
)

// DefaultWelcomeMessage greets the user in an otherwise empty transcript.
const DefaultWelcomeMessage = "Hello! How can I help you today?"

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/converse/)
// 2. Project config (.converse/)
// 3. CONVERSE_CONFIG file
// 4. CONVERSE_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "converse.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "converse.jsonc"), globalPath)

	// 2. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".converse")
		loadOnce(filepath.Join(directory, "converse.json"), directory)
		loadOnce(filepath.Join(directory, "converse.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "converse.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "converse.jsonc"), projectConfigDir)
	}

	// 3. CONVERSE_CONFIG file override
	if configPath := os.Getenv("CONVERSE_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 4. CONVERSE_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("CONVERSE_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal([]byte(configContent), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 5. Environment variables (highest priority), with a project .env
	// loaded first so its values are visible to the overrides.
	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}
	applyEnvOverrides(config)

	applyDefaults(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	// Apply interpolation
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.BaseURL != "" {
		target.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		target.APIKey = source.APIKey
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.Tone != "" {
		target.Tone = source.Tone
	}
	if source.UseMemory {
		target.UseMemory = true
	}
	if source.WelcomeMessage != "" {
		target.WelcomeMessage = source.WelcomeMessage
	}
	if source.ThinkingDwellMs != 0 {
		target.ThinkingDwellMs = source.ThinkingDwellMs
	}
	if source.SaveDebounceMs != 0 {
		target.SaveDebounceMs = source.SaveDebounceMs
	}
	if source.PrefsThrottleSec != 0 {
		target.PrefsThrottleSec = source.PrefsThrottleSec
	}
	if source.CacheTTLSec != 0 {
		target.CacheTTLSec = source.CacheTTLSec
	}
	if source.InactivityTimeout != 0 {
		target.InactivityTimeout = source.InactivityTimeout
	}
	if source.Server.Hostname != "" {
		target.Server.Hostname = source.Server.Hostname
	}
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if v := os.Getenv("CONVERSE_BASE_URL"); v != "" {
		config.BaseURL = v
	}
	if v := os.Getenv("CONVERSE_API_KEY"); v != "" {
		config.APIKey = v
	}
	if v := os.Getenv("CONVERSE_MODEL"); v != "" {
		config.Model = v
	}
	if v := os.Getenv("CONVERSE_TONE"); v != "" {
		config.Tone = v
	}
	if v := os.Getenv("CONVERSE_USE_MEMORY"); v != "" {
		config.UseMemory = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CONVERSE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
}

// applyDefaults fills zero values with engine defaults.
func applyDefaults(config *types.Config) {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.WelcomeMessage == "" {
		config.WelcomeMessage = DefaultWelcomeMessage
	}
	if config.Server.Hostname == "" {
		config.Server.Hostname = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8135
	}
}
