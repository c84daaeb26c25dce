package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	folderEnvVar   = "FOLDER"
	baseURLVar     = "BASE_URL"
	envEnvVar      = "ENV"
	logLevelEnvVar = "LOG_LEVEL"
)

type EnvVars struct {
	src source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.src.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "MyOutlet Admin")
}

func (e EnvVars) GetDataFolder() string {
	return e.src.get(folderEnvVar, "./data")
}

func (e EnvVars) GetEnv() string {
	return e.src.get(envEnvVar, "DEV")
}

// GetBaseURL returns the externally visible URL of this server (e.g., "https://admin.myoutlet.app")
// It is used to build the OAuth redirect URI.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.src.get(baseURLVar, "http://localhost:8080"), "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.src.get(logLevelEnvVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// source resolves a setting by name: flag override, then environment, then config file.
type source struct {
	overrides map[string]string
	file      map[string]string
}

func (s source) get(key, defaultValue string) string {
	if v, ok := s.overrides[key]; ok && v != "" {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}

func (s source) getBool(key string, defaultValue bool) bool {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid boolean, using default")
		return defaultValue
	}
	return b
}

func (s source) getList(key string, defaultValue []string) []string {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
