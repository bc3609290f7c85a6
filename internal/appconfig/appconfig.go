// Package appconfig loads the YAML configuration spec §6.6 names: proxy,
// object-store, database, bus, log aggregator, and upstream-provider
// sections. Secrets never live in the file — they are overlaid from the
// environment after the YAML is parsed, the same "load once, share as a
// read-only value" posture the teacher's config.Config uses for its JSON
// file. Schema validation UX, hot reload, and CLI flags for path discovery
// are out of scope; LoadConfig is a single yaml.Unmarshal call plus the
// environment overlay.
package appconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProxyConfig is C2's local-listener and upstream-forward-proxy shape.
type ProxyConfig struct {
	ListenAddr string   `yaml:"listen_addr"`
	AllowList  []string `yaml:"allow_list"`
	Upstream   struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"upstream"`

	// Username/Password are never read from YAML; they are populated from
	// COPART_PROXY_USERNAME / COPART_PROXY_PASSWORD by LoadConfig.
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// ObjectStoreConfig mirrors imagesync.ObjectStoreConfig's YAML-facing shape.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	PathStyle bool   `yaml:"path_style"`

	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

// DatabaseConfig is the persister's pgx pool DSN shape.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// BusConfig configures the kgo consumer/producer adapters.
type BusConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// LogAggregatorConfig names a remote log sink; per spec §1's Non-goals,
// sink *configuration* (shipping logs there) is out of scope — this just
// carries the address through for callers that want it, and is otherwise
// unused by obslog.New.
type LogAggregatorConfig struct {
	Endpoint string `yaml:"endpoint"`
	Level    string `yaml:"level"`
}

// UpstreamProviderConfig is the site the browser pool drives: the site root
// and the search, images and auction URLs the Navigator composes its
// destinations from, plus the site login credentials (overlaid from the
// environment).
type UpstreamProviderConfig struct {
	SiteRoot   string `yaml:"site_root"`
	SearchURL  string `yaml:"search_url"`
	ImagesURL  string `yaml:"images_url"`
	AuctionURL string `yaml:"auction_url"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// Config is the top-level document LoadConfig parses.
type Config struct {
	Proxy           ProxyConfig            `yaml:"proxy"`
	ObjectStore     ObjectStoreConfig      `yaml:"object_store"`
	Database        DatabaseConfig         `yaml:"database"`
	Bus             BusConfig              `yaml:"bus"`
	LogAggregator   LogAggregatorConfig    `yaml:"log_aggregator"`
	UpstreamProvider UpstreamProviderConfig `yaml:"upstream_provider"`
}

// LoadConfig reads the YAML file at path (CONFIG_PATH, default
// "config.yaml" — see PathFromEnv) and overlays secrets from the
// environment. Site credentials, upstream-proxy credentials, and database
// credentials never live in the file itself (spec §6.6).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from CONFIG_PATH/default, not request input
	if err != nil {
		return nil, fmt.Errorf("appconfig: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("appconfig: decode %q: %w", path, err)
	}

	cfg.Proxy.Username = os.Getenv("COPART_PROXY_USERNAME")
	cfg.Proxy.Password = os.Getenv("COPART_PROXY_PASSWORD")
	cfg.ObjectStore.AccessKeyID = os.Getenv("OBJECT_STORE_ACCESS_KEY_ID")
	cfg.ObjectStore.SecretAccessKey = os.Getenv("OBJECT_STORE_SECRET_ACCESS_KEY")
	cfg.Database.Username = os.Getenv("DATABASE_USERNAME")
	cfg.Database.Password = os.Getenv("DATABASE_PASSWORD")
	cfg.UpstreamProvider.Username = os.Getenv("COPART_SITE_USERNAME")
	cfg.UpstreamProvider.Password = os.Getenv("COPART_SITE_PASSWORD")

	return &cfg, nil
}

// PathFromEnv resolves the config file path from CONFIG_PATH, defaulting to
// "config.yaml" per spec §6.6.
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// DSN builds the pgx connection string persister.NewPGStore expects.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, sslMode,
	)
}
