package config

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	BackendConfig
	StorageConfig
	RoutesConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Backend
	Storage
	Routes
}

// New returns a configuration read from the environment only.
func New() Config {
	return newConfig(source{})
}

func newConfig(src source) Config {
	return mainConfig{
		EnvVars:  EnvVars{src: src},
		Cors:     Cors{src: src},
		OAuth:    OAuth{src: src},
		Security: Security{src: src},
		Backend:  Backend{src: src},
		Storage:  Storage{src: src},
		Routes:   Routes{src: src},
	}
}
