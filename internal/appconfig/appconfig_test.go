package appconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wonderooo/cars/internal/appconfig"
)

const sampleYAML = `
proxy:
  listen_addr: ":8080"
  allow_list: ["api.copart.com"]
  upstream:
    host: upstream.example.com
    port: 3128
object_store:
  endpoint: http://minio:9000
  region: us-east-1
  bucket: lot-images
  path_style: true
database:
  host: db
  port: 5432
  database: copart
bus:
  brokers: ["kafka:9092"]
  group_id: browser-pool
log_aggregator:
  endpoint: http://loki:3100
  level: info
upstream_provider:
  site_root: https://www.copart.com
  search_url: https://www.copart.com/public/lots/search
  images_url: https://www.copart.com/public/data/lotdetails/solr/lotImages
  auction_url: https://www.copart.com/auctionSearchResults
`

func TestLoadConfigParsesSectionsAndOverlaysSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write sample config: %v", err)
	}

	t.Setenv("COPART_PROXY_USERNAME", "proxy-user")
	t.Setenv("COPART_PROXY_PASSWORD", "proxy-pass")
	t.Setenv("DATABASE_USERNAME", "db-user")
	t.Setenv("DATABASE_PASSWORD", "db-pass")

	cfg, err := appconfig.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Proxy.Upstream.Host != "upstream.example.com" || cfg.Proxy.Upstream.Port != 3128 {
		t.Errorf("proxy.upstream = %+v, want host/port from YAML", cfg.Proxy.Upstream)
	}
	if len(cfg.Proxy.AllowList) != 1 || cfg.Proxy.AllowList[0] != "api.copart.com" {
		t.Errorf("proxy.allow_list = %v", cfg.Proxy.AllowList)
	}
	if cfg.Proxy.Username != "proxy-user" || cfg.Proxy.Password != "proxy-pass" {
		t.Errorf("proxy credentials were not overlaid from environment: %+v", cfg.Proxy)
	}
	if cfg.Database.Username != "db-user" || cfg.Database.Password != "db-pass" {
		t.Errorf("database credentials were not overlaid from environment: %+v", cfg.Database)
	}
	if cfg.Bus.Brokers[0] != "kafka:9092" || cfg.Bus.GroupID != "browser-pool" {
		t.Errorf("bus = %+v", cfg.Bus)
	}
	if cfg.ObjectStore.Bucket != "lot-images" || !cfg.ObjectStore.PathStyle {
		t.Errorf("object_store = %+v", cfg.ObjectStore)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := appconfig.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestPathFromEnvDefault(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := appconfig.PathFromEnv(); got != "config.yaml" {
		t.Errorf("PathFromEnv() = %q, want config.yaml", got)
	}

	t.Setenv("CONFIG_PATH", "/etc/copart/config.yaml")
	if got := appconfig.PathFromEnv(); got != "/etc/copart/config.yaml" {
		t.Errorf("PathFromEnv() = %q, want override", got)
	}
}

func TestDatabaseConfigDSN(t *testing.T) {
	d := appconfig.DatabaseConfig{
		Host: "db", Port: 5432, Database: "copart",
		Username: "u", Password: "p",
	}
	want := "postgres://u:p@db:5432/copart?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
