package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Supported database drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the complete tablecrud configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  Database        `yaml:"database"`
	UI        UIConfig        `yaml:"ui"`
	Templates TemplatesConfig `yaml:"templates"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	Compression bool   `yaml:"compression"`
	LogFormat   string `yaml:"log_format"` // text or json
	LogLevel    string `yaml:"log_level"`
}

// Database holds connection settings for the relational store
type Database struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	DSN             string        `yaml:"dsn,omitempty"` // overrides the fields above
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// UIConfig holds page chrome settings
type UIConfig struct {
	Title  string `yaml:"title"`
	Notice string `yaml:"notice,omitempty"` // HTML, sanitized before rendering
}

// TemplatesConfig points the renderer at templates on disk instead of the embedded set
type TemplatesConfig struct {
	Dir      string        `yaml:"dir,omitempty"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			Compression: true,
			LogFormat:   "text",
			LogLevel:    "info",
		},
		Database: Database{
			Driver:          DriverMySQL,
			Host:            "localhost",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		UI: UIConfig{
			Title: "CRUD Application",
		},
		Templates: TemplatesConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Load reads configuration from path with ${VAR} interpolation.
// An empty path yields the defaults overlaid with the DB_* environment.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		path = getenv("TABLECRUD_CONFIG")
	}

	if path == "" {
		applyEnv(cfg, getenv)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = interpolateEnv(data, getenv)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Templates.Dir != "" && !filepath.IsAbs(cfg.Templates.Dir) {
			cfg.Templates.Dir = filepath.Join(filepath.Dir(path), cfg.Templates.Dir)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills the database section from DB_USER, DB_PASS, DB_HOST, DB_NAME and friends
func applyEnv(cfg *Config, getenv func(string) string) {
	db := &cfg.Database
	if v := getenv("DB_DRIVER"); v != "" {
		db.Driver = v
	}
	if v := getenv("DB_HOST"); v != "" {
		db.Host = v
	}
	if v := getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			db.Port = port
		}
	}
	if v := getenv("DB_USER"); v != "" {
		db.User = v
	}
	if v := getenv("DB_PASS"); v != "" {
		db.Password = v
	}
	if v := getenv("DB_NAME"); v != "" {
		db.Name = v
	}
	if v := getenv("DB_DSN"); v != "" {
		db.DSN = v
	}
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	switch c.Server.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid server.log_format: %q (must be text or json)", c.Server.LogFormat))
	}

	db := c.Database
	switch db.Driver {
	case DriverMySQL, DriverPostgres:
		if db.DSN == "" && db.Name == "" {
			errs = append(errs, "database.name is required")
		}
	case DriverSQLite:
		if db.DSN == "" && db.Name == "" {
			errs = append(errs, "database.name must be a file path or :memory:")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported database.driver: %q (must be mysql, postgres or sqlite)", db.Driver))
	}
	if db.Port < 0 || db.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid database.port: %d", db.Port))
	}
	if db.MaxOpenConns < 0 || db.MaxIdleConns < 0 {
		errs = append(errs, "database connection limits must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DataSourceName builds the driver-specific DSN
func (d Database) DataSourceName() string {
	if d.DSN != "" {
		return d.DSN
	}

	switch d.Driver {
	case DriverPostgres:
		port := d.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(d.Host, strconv.Itoa(port)),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		return u.String()
	case DriverSQLite:
		return d.Name
	default:
		port := d.Port
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(port))
		mc.DBName = d.Name
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	}
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
