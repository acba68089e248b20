// Package config loads cyroid's runtime configuration from flags and
// environment variables, in the teacher's style: a flat struct, cobra
// PersistentFlags for defaults, environment overlay on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config is the full set of options listed in the configuration table.
type Config struct {
	DatabaseURL     string
	ISOCacheDir     string
	TemplateDir     string
	VMStorageDir    string
	GlobalSharedDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	RedisURL string

	JWTSecret string
	JWTTTL    time.Duration

	ContainerdSocket   string
	CNIConfDir         string
	RoutingNetworkCIDR string

	ListenAddr string

	LogLevel string
	LogJSON  bool
}

// Default returns a Config populated with the teacher's style of
// single-node local defaults, suitable for `cyroid-migrate` and tests.
func Default() Config {
	return Config{
		DatabaseURL:     "./cyroid-data/cyroid.db",
		ISOCacheDir:     "./cyroid-data/iso-cache",
		TemplateDir:     "./cyroid-data/templates",
		VMStorageDir:    "./cyroid-data/vm-storage",
		GlobalSharedDir: "./cyroid-data/shared",
		MinioEndpoint:   "127.0.0.1:9000",
		MinioBucket:     "cyroid-artifacts",
		MinioUseSSL:     false,
		RedisURL:        "redis://127.0.0.1:6379/0",
		JWTTTL:          24 * time.Hour,
		ListenAddr:      ":8443",
		LogLevel:        "info",
		LogJSON:         false,
	}
}

// BindFlags registers the configuration's flags on fs with Default()'s
// values as defaults, mirroring cmd/warren's PersistentFlags() pattern.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "repository endpoint: path of the bbolt file; the database opened is cyroid.db in that path's directory")
	fs.StringVar(&cfg.ISOCacheDir, "iso-cache-dir", cfg.ISOCacheDir, "root directory for the ISO cache")
	fs.StringVar(&cfg.TemplateDir, "template-storage-dir", cfg.TemplateDir, "root directory for golden images")
	fs.StringVar(&cfg.VMStorageDir, "vm-storage-dir", cfg.VMStorageDir, "root directory for per-VM persistent storage")
	fs.StringVar(&cfg.GlobalSharedDir, "global-shared-dir", cfg.GlobalSharedDir, "read-only global shared mount source")
	fs.StringVar(&cfg.MinioEndpoint, "minio-endpoint", cfg.MinioEndpoint, "object store endpoint for artifact blobs")
	fs.StringVar(&cfg.MinioAccessKey, "minio-access-key", cfg.MinioAccessKey, "object store access key")
	fs.StringVar(&cfg.MinioSecretKey, "minio-secret-key", cfg.MinioSecretKey, "object store secret key")
	fs.StringVar(&cfg.MinioBucket, "minio-bucket", cfg.MinioBucket, "object store bucket for artifact blobs")
	fs.BoolVar(&cfg.MinioUseSSL, "minio-use-ssl", cfg.MinioUseSSL, "use TLS when connecting to the object store")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "background-task broker address")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret used to verify bearer tokens")
	fs.DurationVar(&cfg.JWTTTL, "jwt-ttl", cfg.JWTTTL, "lifetime of issued tokens")
	fs.StringVar(&cfg.ContainerdSocket, "containerd-socket", cfg.ContainerdSocket, "containerd socket path (auto-detected if empty)")
	fs.StringVar(&cfg.CNIConfDir, "cni-conf-dir", cfg.CNIConfDir, "directory for generated per-network CNI conflists")
	fs.StringVar(&cfg.RoutingNetworkCIDR, "routing-network-cidr", cfg.RoutingNetworkCIDR, "CIDR for the shared routing network every container attaches to first (disabled if empty)")
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "address the session multiplexer's HTTPS listener binds")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "output logs in JSON format")
}

// OverlayEnv overlays environment variables onto cfg, taking precedence
// over flag-supplied values, same as the teacher binds WARREN_* env vars
// for container deployments.
func OverlayEnv(cfg *Config) error {
	str(&cfg.DatabaseURL, "CYROID_DATABASE_URL")
	str(&cfg.ISOCacheDir, "CYROID_ISO_CACHE_DIR")
	str(&cfg.TemplateDir, "CYROID_TEMPLATE_STORAGE_DIR")
	str(&cfg.VMStorageDir, "CYROID_VM_STORAGE_DIR")
	str(&cfg.GlobalSharedDir, "CYROID_GLOBAL_SHARED_DIR")
	str(&cfg.MinioEndpoint, "CYROID_MINIO_ENDPOINT")
	str(&cfg.MinioAccessKey, "CYROID_MINIO_ACCESS_KEY")
	str(&cfg.MinioSecretKey, "CYROID_MINIO_SECRET_KEY")
	str(&cfg.MinioBucket, "CYROID_MINIO_BUCKET")
	str(&cfg.RedisURL, "CYROID_REDIS_URL")
	str(&cfg.JWTSecret, "CYROID_JWT_SECRET")
	str(&cfg.ContainerdSocket, "CYROID_CONTAINERD_SOCKET")
	str(&cfg.CNIConfDir, "CYROID_CNI_CONF_DIR")
	str(&cfg.RoutingNetworkCIDR, "CYROID_ROUTING_NETWORK_CIDR")
	str(&cfg.ListenAddr, "CYROID_LISTEN_ADDR")
	str(&cfg.LogLevel, "CYROID_LOG_LEVEL")

	if v, ok := os.LookupEnv("CYROID_MINIO_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CYROID_MINIO_USE_SSL: %w", err)
		}
		cfg.MinioUseSSL = b
	}
	if v, ok := os.LookupEnv("CYROID_LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CYROID_LOG_JSON: %w", err)
		}
		cfg.LogJSON = b
	}
	if v, ok := os.LookupEnv("CYROID_JWT_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CYROID_JWT_TTL: %w", err)
		}
		cfg.JWTTTL = d
	}
	return nil
}

func str(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

// Load builds a Config from flag defaults overlaid with environment
// variables. fs may be nil, in which case Default() supplies every value
// not overridden by the environment.
func Load(fs *pflag.FlagSet) (Config, error) {
	cfg := Default()
	if fs != nil {
		BindFlags(fs, &cfg)
	}
	if err := OverlayEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret is required (set --jwt-secret or CYROID_JWT_SECRET)")
	}
	return cfg, nil
}
