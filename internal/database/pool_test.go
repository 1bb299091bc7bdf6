package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rickgao/pricefeed/internal/config"
)

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DBConfig
		wantTLS bool
	}{
		{
			name: "local without tls",
			cfg: config.DBConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "pricefeed",
				User:     "pricefeed",
				Password: "secret",
				SSLMode:  "disable",
				MaxConns: 4,
				MinConns: 1,
			},
			wantTLS: false,
		},
		{
			name: "password with special chars",
			cfg: config.DBConfig{
				Host:     "db.internal",
				Port:     6432,
				Name:     "snapshots",
				User:     "recorder",
				Password: "p@ss:word/with?chars",
				SSLMode:  "require",
				MaxConns: 8,
			},
			wantTLS: true,
		},
		{
			name: "empty ssl mode uses default",
			cfg: config.DBConfig{
				Host:     "db.internal",
				Port:     5432,
				Name:     "pricefeed",
				User:     "recorder",
				Password: "secret",
				MaxConns: 2,
			},
			wantTLS: true, // prefer tries TLS first
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := PoolConfig(tt.cfg)
			if err != nil {
				t.Fatalf("PoolConfig() error = %v", err)
			}

			cc := pc.ConnConfig
			if cc.Host != tt.cfg.Host || int(cc.Port) != tt.cfg.Port {
				t.Errorf("addr = %s:%d, want %s:%d", cc.Host, cc.Port, tt.cfg.Host, tt.cfg.Port)
			}
			if cc.Database != tt.cfg.Name || cc.User != tt.cfg.User {
				t.Errorf("db/user = %s/%s, want %s/%s", cc.Database, cc.User, tt.cfg.Name, tt.cfg.User)
			}
			if cc.Password != tt.cfg.Password {
				t.Errorf("Password = %q, want %q", cc.Password, tt.cfg.Password)
			}
			if got := cc.RuntimeParams["application_name"]; got != ApplicationName {
				t.Errorf("application_name = %q, want %q", got, ApplicationName)
			}
			if got := cc.RuntimeParams["timezone"]; got != "UTC" {
				t.Errorf("timezone = %q, want UTC", got)
			}
			if (cc.TLSConfig != nil) != tt.wantTLS {
				t.Errorf("TLS = %v, want %v", cc.TLSConfig != nil, tt.wantTLS)
			}
			if pc.MaxConns != int32(tt.cfg.MaxConns) || pc.MinConns != int32(tt.cfg.MinConns) {
				t.Errorf("conns = %d/%d, want %d/%d", pc.MinConns, pc.MaxConns, tt.cfg.MinConns, tt.cfg.MaxConns)
			}
		})
	}
}

func TestPoolConfig_FromRecorderConfig(t *testing.T) {
	t.Setenv("PRICEFEED_DB_PASSWORD", "p@ss/w:rd")

	path := filepath.Join(t.TempDir(), "pricefeed.yaml")
	content := `
feed:
  pairs: [BTC-USDT]
database:
  enabled: true
  postgres:
    host: localhost
    name: pricefeed
    user: recorder
    password: ${PRICEFEED_DB_PASSWORD}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.Database.Postgres.SSLMode != config.DefaultDBSSLMode {
		t.Errorf("SSLMode = %q, want default %q", cfg.Database.Postgres.SSLMode, config.DefaultDBSSLMode)
	}

	pc, err := PoolConfig(cfg.Database.Postgres)
	if err != nil {
		t.Fatalf("PoolConfig() error = %v", err)
	}
	if pc.ConnConfig.Password != "p@ss/w:rd" {
		t.Errorf("Password = %q, want the expanded env value", pc.ConnConfig.Password)
	}
	if pc.ConnConfig.Port != config.DefaultDBPort {
		t.Errorf("Port = %d, want %d", pc.ConnConfig.Port, config.DefaultDBPort)
	}
	if pc.MaxConns != config.DefaultMaxConns || pc.MinConns != config.DefaultMinConns {
		t.Errorf("conns = %d/%d, want defaults", pc.MinConns, pc.MaxConns)
	}
}
