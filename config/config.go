package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	HttpPort int `toml:"http_port"`
}

type LogConfig struct {
	Path  string `toml:"log_path"`
	File  string `toml:"log_file"`
	Level string `toml:"log_level"`
}

type DBConfig struct {
	// Engine selects the storage backend, "sqlite" or "mysql".
	Engine   string `toml:"engine"`
	Path     string `toml:"path"`
	Host     string `toml:"host"`
	DB       string `toml:"db"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type NetConfig struct {
	NotifierWebhook string `toml:"notifier_webhook"`
}

type LedgerConfig struct {
	// AuditSpec is a cron spec (with seconds) for the chain integrity audit.
	AuditSpec string `toml:"audit_spec"`
}

type Config struct {
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
	DB     DBConfig     `toml:"database"`
	Net    NetConfig    `toml:"net"`
	Ledger LedgerConfig `toml:"ledger"`
}

func LoadConfig() *Config {
	var config Config
	data, err := toml.DecodeFile("./config.toml", &config)
	if err != nil {
		fmt.Println(data, err)
	}

	if config.DB.Engine == "" {
		config.DB.Engine = "sqlite"
	}
	if config.DB.Path == "" {
		config.DB.Path = "./ledger.db"
	}
	if config.Ledger.AuditSpec == "" {
		config.Ledger.AuditSpec = "0 0 */1 * * *"
	}

	return &config
}
