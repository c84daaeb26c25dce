package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that win over the environment and the file.
	FlagOverrides FlagOverrides
}

// FlagOverrides holds CLI flag values. Nil means the flag was not set.
type FlagOverrides struct {
	Port          *string
	Env           *string
	BaseURL       *string
	DataFolder    *string
	LogLevel      *string
	BackendURL    *string
	StorageDriver *string
	StoragePath   *string
	SignInMode    *string
}

// fileConfig is the TOML layout. Each field maps onto one environment variable name.
type fileConfig struct {
	Server struct {
		Port       string `toml:"port"`
		AppName    string `toml:"app_name"`
		Env        string `toml:"env"`
		BaseURL    string `toml:"base_url"`
		LogLevel   string `toml:"log_level"`
		DataFolder string `toml:"data_folder"`
	} `toml:"server"`
	Backend struct {
		URL            string `toml:"url"`
		RefreshTimeout string `toml:"refresh_timeout"`
		RequestTimeout string `toml:"request_timeout"`
		PublicMenuHost string `toml:"public_menu_host"`
	} `toml:"backend"`
	OAuth struct {
		SignInMode         string `toml:"sign_in_mode"`
		GoogleClientID     string `toml:"google_client_id"`
		GoogleClientSecret string `toml:"google_client_secret"`
		GoogleIssuer       string `toml:"google_issuer"`
		RedirectPath       string `toml:"redirect_path"`
		FlowTimeout        string `toml:"flow_timeout"`
	} `toml:"oauth"`
	Security struct {
		SessionCookieName  string `toml:"session_cookie_name"`
		MaxSessionAge      string `toml:"max_session_age"`
		SessionIdleTimeout string `toml:"session_idle_timeout"`
		StorageKey         string `toml:"storage_key"`
		SecureCookies      *bool  `toml:"secure_cookies"`
	} `toml:"security"`
	Storage struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
	} `toml:"storage"`
	Routes struct {
		Entry        string   `toml:"entry"`
		Register     string   `toml:"register"`
		Dashboard    string   `toml:"dashboard"`
		Protected    []string `toml:"protected"`
		AuthOnly     []string `toml:"auth_only"`
		Public       []string `toml:"public"`
		RoutingDelay string   `toml:"routing_delay"`
		InitWait     string   `toml:"init_wait"`
	} `toml:"routes"`
	Cors struct {
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"cors"`
}

// Load builds the configuration with the following precedence:
//  1. CLI flags
//  2. environment variables
//  3. TOML config file values
//  4. built-in defaults
//
// Unknown TOML keys produce a warning but do not fail the load.
func Load(opts LoaderOptions) (Config, error) {
	src := source{overrides: opts.FlagOverrides.values()}

	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err != nil {
			return nil, fmt.Errorf("[config Load] config file %q: %w", opts.ConfigPath, err)
		}
		var fc fileConfig
		md, err := toml.DecodeFile(opts.ConfigPath, &fc)
		if err != nil {
			return nil, fmt.Errorf("[config Load] failed to parse %q: %w", opts.ConfigPath, err)
		}
		for _, key := range md.Undecoded() {
			log.Warn().Str("key", key.String()).Str("file", opts.ConfigPath).Msg("unknown config key ignored")
		}
		src.file = fc.values()
	}

	return newConfig(src), nil
}

func (f FlagOverrides) values() map[string]string {
	out := map[string]string{}
	set := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	set(portEnvVar, f.Port)
	set(envEnvVar, f.Env)
	set(baseURLVar, f.BaseURL)
	set(folderEnvVar, f.DataFolder)
	set(logLevelEnvVar, f.LogLevel)
	set("BACKEND_URL", f.BackendURL)
	set("STORAGE_DRIVER", f.StorageDriver)
	set("STORAGE_PATH", f.StoragePath)
	set("SIGN_IN_MODE", f.SignInMode)
	return out
}

func (fc fileConfig) values() map[string]string {
	out := map[string]string{
		portEnvVar:             fc.Server.Port,
		appNameVar:             fc.Server.AppName,
		envEnvVar:              fc.Server.Env,
		baseURLVar:             fc.Server.BaseURL,
		logLevelEnvVar:         fc.Server.LogLevel,
		folderEnvVar:           fc.Server.DataFolder,
		"BACKEND_URL":          fc.Backend.URL,
		"REFRESH_TIMEOUT":      fc.Backend.RefreshTimeout,
		"REQUEST_TIMEOUT":      fc.Backend.RequestTimeout,
		"PUBLIC_MENU_HOST":     fc.Backend.PublicMenuHost,
		"SIGN_IN_MODE":         fc.OAuth.SignInMode,
		"GOOGLE_CLIENT_ID":     fc.OAuth.GoogleClientID,
		"GOOGLE_CLIENT_SECRET": fc.OAuth.GoogleClientSecret,
		"GOOGLE_ISSUER":        fc.OAuth.GoogleIssuer,
		"OAUTH_REDIRECT_PATH":  fc.OAuth.RedirectPath,
		"AUTH_FLOW_TIMEOUT":    fc.OAuth.FlowTimeout,
		"SESSION_COOKIE_NAME":  fc.Security.SessionCookieName,
		"MAX_SESSION_AGE":      fc.Security.MaxSessionAge,
		"SESSION_IDLE_TIMEOUT": fc.Security.SessionIdleTimeout,
		"STORAGE_KEY":          fc.Security.StorageKey,
		"STORAGE_DRIVER":       fc.Storage.Driver,
		"STORAGE_PATH":         fc.Storage.Path,
		"ROUTE_ENTRY":          fc.Routes.Entry,
		"ROUTE_REGISTER":       fc.Routes.Register,
		"ROUTE_DASHBOARD":      fc.Routes.Dashboard,
		"ROUTES_PROTECTED":     strings.Join(fc.Routes.Protected, ","),
		"ROUTES_AUTH_ONLY":     strings.Join(fc.Routes.AuthOnly, ","),
		"ROUTES_PUBLIC":        strings.Join(fc.Routes.Public, ","),
		"ROUTING_DELAY":        fc.Routes.RoutingDelay,
		"GUARD_INIT_WAIT":      fc.Routes.InitWait,
		corsOriginsEnvVar:      strings.Join(fc.Cors.AllowedOrigins, ","),
	}
	if fc.Security.SecureCookies != nil {
		out["SECURE_COOKIES"] = strconv.FormatBool(*fc.Security.SecureCookies)
	}
	return out
}
