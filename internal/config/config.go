package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	Server         ServerConfig
	Store          StoreConfig
	Sync           SyncConfig
	LeaderElection LeaderElectionConfig
	Kubernetes     KubernetesConfig
	Metrics        MetricsConfig
	Logger         LoggerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StoreConfig struct {
	Driver   string
	Database DatabaseConfig
	SQLite   SQLiteConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

type SQLiteConfig struct {
	Path string
}

type SyncConfig struct {
	Enabled      bool
	TargetURL    string
	EndpointPath string
	Interval     time.Duration
	Timeout      time.Duration
	BatchSize    int
	IncludeState bool
}

type LeaderElectionConfig struct {
	Enabled   bool
	Namespace string
	LeaseName string
	Identity  string
}

type KubernetesConfig struct {
	InCluster  bool
	KubeConfig string
}

type MetricsConfig struct {
	Enabled bool
}

type LoggerConfig struct {
	Level  string
	Format string
}

// DSN builds the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Load reads configuration from the environment, layered over an optional
// config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_NAME", "artifacts")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_CONNECT_TIMEOUT", "30s")
	v.SetDefault("SQLITE_PATH", "artifacts.db")
	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_TARGET_URL", "http://localhost:3001")
	v.SetDefault("SYNC_ENDPOINT_PATH", "/api/sync")
	v.SetDefault("SYNC_INTERVAL_MS", 300000)
	v.SetDefault("SYNC_TIMEOUT", "30s")
	v.SetDefault("SYNC_BATCH_SIZE", 500)
	v.SetDefault("SYNC_INCLUDE_STATE", false)
	v.SetDefault("LEADER_ELECTION_ENABLED", false)
	v.SetDefault("LEADER_ELECTION_NAMESPACE", "default")
	v.SetDefault("LEADER_ELECTION_LEASE_NAME", "artifact-sync")
	v.SetDefault("LEADER_ELECTION_IDENTITY", "")
	v.SetDefault("KUBE_IN_CLUSTER", false)
	v.SetDefault("KUBECONFIG", "")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Env
	v.AutomaticEnv()

	driver := strings.ToLower(v.GetString("STORE_DRIVER"))
	if driver != StoreDriverPostgres && driver != StoreDriverSQLite {
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}

	interval := time.Duration(v.GetInt64("SYNC_INTERVAL_MS")) * time.Millisecond
	if interval <= 0 {
		interval = 300000 * time.Millisecond
	}

	identity := v.GetString("LEADER_ELECTION_IDENTITY")
	if identity == "" {
		identity, _ = os.Hostname()
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Store: StoreConfig{
			Driver: driver,
			Database: DatabaseConfig{
				Host:            v.GetString("DATABASE_HOST"),
				Port:            v.GetInt("DATABASE_PORT"),
				User:            v.GetString("DATABASE_USER"),
				Password:        v.GetString("DATABASE_PASSWORD"),
				Name:            v.GetString("DATABASE_NAME"),
				SSLMode:         v.GetString("DATABASE_SSLMODE"),
				MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
				MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
				ConnMaxLifetime: parseDuration(v.GetString("DATABASE_CONN_MAX_LIFETIME"), 30*time.Minute),
				ConnectTimeout:  parseDuration(v.GetString("DATABASE_CONNECT_TIMEOUT"), 30*time.Second),
			},
			SQLite: SQLiteConfig{
				Path: v.GetString("SQLITE_PATH"),
			},
		},
		Sync: SyncConfig{
			Enabled:      v.GetBool("SYNC_ENABLED"),
			TargetURL:    v.GetString("SYNC_TARGET_URL"),
			EndpointPath: v.GetString("SYNC_ENDPOINT_PATH"),
			Interval:     interval,
			Timeout:      parseDuration(v.GetString("SYNC_TIMEOUT"), 30*time.Second),
			BatchSize:    v.GetInt("SYNC_BATCH_SIZE"),
			IncludeState: v.GetBool("SYNC_INCLUDE_STATE"),
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:   v.GetBool("LEADER_ELECTION_ENABLED"),
			Namespace: v.GetString("LEADER_ELECTION_NAMESPACE"),
			LeaseName: v.GetString("LEADER_ELECTION_LEASE_NAME"),
			Identity:  identity,
		},
		Kubernetes: KubernetesConfig{
			InCluster:  v.GetBool("KUBE_IN_CLUSTER"),
			KubeConfig: v.GetString("KUBECONFIG"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
