package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	AIAgent  AIAgentConfig  `mapstructure:"ai_agent"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
	SlowQuery    time.Duration `mapstructure:"slow_query"`
}

type AuthConfig struct {
	SessionSecret      string        `mapstructure:"session_secret"`
	SessionIssuer      string        `mapstructure:"session_issuer"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	CookieName         string        `mapstructure:"cookie_name"`
	CookieSecure       bool          `mapstructure:"cookie_secure"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	FirebaseProjectID  string        `mapstructure:"firebase_project_id"`
	FirebaseCertsURL   string        `mapstructure:"firebase_certs_url"`
	GitHubClientID     string        `mapstructure:"github_client_id"`
	GitHubClientSecret string        `mapstructure:"github_client_secret"`
	GitHubRedirectURL  string        `mapstructure:"github_redirect_url"`
	PostLoginRedirect  string        `mapstructure:"post_login_redirect"`
	AdminEmails        []string      `mapstructure:"admin_emails"`
}

type AIAgentConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Token         string        `mapstructure:"token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

type QuotaConfig struct {
	FreeQueries  int           `mapstructure:"free_queries"`
	CookieMaxAge time.Duration `mapstructure:"cookie_max_age"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DSN returns DATABASE_URL when set, otherwise a key/value connection string
// built from the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode,
	)
}

// legacy flat environment names still used by deployments
var envAliases = map[string][]string{
	"server.port":               {"SERVER_PORT", "PORT"},
	"server.mode":               {"SERVER_MODE", "GIN_MODE"},
	"database.url":              {"DATABASE_URL"},
	"database.host":             {"DATABASE_HOST", "DB_HOST"},
	"database.port":             {"DATABASE_PORT", "DB_PORT"},
	"database.user":             {"DATABASE_USER", "DB_USER"},
	"database.password":         {"DATABASE_PASSWORD", "DB_PASSWORD"},
	"database.dbname":           {"DATABASE_DBNAME", "DB_NAME"},
	"database.sslmode":          {"DATABASE_SSLMODE", "DB_SSLMODE"},
	"auth.session_secret":       {"AUTH_SESSION_SECRET", "JWT_SECRET"},
	"auth.firebase_project_id":  {"AUTH_FIREBASE_PROJECT_ID", "FIREBASE_PROJECT_ID"},
	"auth.github_client_id":     {"AUTH_GITHUB_CLIENT_ID", "GITHUB_ID"},
	"auth.github_client_secret": {"AUTH_GITHUB_CLIENT_SECRET", "GITHUB_SECRET"},
	"ai_agent.base_url":         {"AI_AGENT_BASE_URL", "AI_AGENT_URL"},
	"ai_agent.token":            {"AI_AGENT_TOKEN", "AI_BACKEND_TOKEN"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.idle_timeout", time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "doubts")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_lifetime", time.Hour)
	v.SetDefault("database.slow_query", time.Second)

	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_issuer", "doubts-session")
	v.SetDefault("auth.session_ttl", 72*time.Hour)
	v.SetDefault("auth.cookie_name", "session_token")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.firebase_project_id", "")
	v.SetDefault("auth.firebase_certs_url", "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com")
	v.SetDefault("auth.github_client_id", "")
	v.SetDefault("auth.github_client_secret", "")
	v.SetDefault("auth.github_redirect_url", "http://localhost:8080/api/auth/github/callback")
	v.SetDefault("auth.post_login_redirect", "http://localhost:3000/")
	v.SetDefault("auth.admin_emails", []string{})

	v.SetDefault("ai_agent.base_url", "http://localhost:8000")
	v.SetDefault("ai_agent.token", "")
	v.SetDefault("ai_agent.timeout", 60*time.Second)
	v.SetDefault("ai_agent.health_timeout", 5*time.Second)

	v.SetDefault("quota.free_queries", 3)
	v.SetDefault("quota.cookie_max_age", 7*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration from defaults, an optional YAML file at path and
// the environment, in increasing order of precedence. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Auth.SessionSecret) < 16 {
		return errors.New("config: auth.session_secret (JWT_SECRET) must be at least 16 characters")
	}
	if c.Quota.FreeQueries < 0 {
		return errors.New("config: quota.free_queries must not be negative")
	}
	if c.AIAgent.BaseURL == "" {
		return errors.New("config: ai_agent.base_url is required")
	}
	return nil
}

// IsAdmin reports whether email is listed in auth.admin_emails.
func (a AuthConfig) IsAdmin(email string) bool {
	for _, e := range a.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}
