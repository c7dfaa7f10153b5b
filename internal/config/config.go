package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Listen     string `toml:"listen"`
	DBPath     string `toml:"db_path"`
	RPCSocket  string `toml:"rpc_socket"`
	AdminName  string `toml:"admin_name"`
	AdminEmail string `toml:"admin_email"`
	AdminPass  string `toml:"admin_password"`
	Mail       Mail   `toml:"mail"`
}

type Mail struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

func Default() Config {
	return Config{
		Listen:    ":8080",
		DBPath:    "flowboard.db",
		RPCSocket: "/tmp/flowboard.sock",
	}
}

// Load reads the TOML config when the file exists and then applies the
// EMAIL_USER / EMAIL_PASSWORD environment overrides, so mail credentials
// never have to live on disk.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, err
			}
		}
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		cfg.Mail.User = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	return cfg, nil
}
