package config

import (
	"os"

	"github.com/go-ini/ini"
)

const (
	DefaultConfigFile = "/etc/advflow/config.ini"
	ConfigFileEnv     = "ADVFLOW_CONFIG"
)

type Configuration struct {
	API      APIConfig      `json:"api"`
	Database DatabaseConfig `json:"database"`
	LOG      LogConfig      `json:"log"`
	Mail     MailConfig     `json:"mail"`
	Reminder ReminderConfig `json:"reminder"`
}

// Load reads the ini file at path. A missing file is not an error: every
// section falls back to its defaults.
func Load(path string) (*Configuration, error) {
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path == "" {
		path = DefaultConfigFile
	}
	file, err := ini.LooseLoad(path)
	if err != nil {
		return nil, err
	}
	return FromFile(file), nil
}

func FromFile(file *ini.File) *Configuration {
	return &Configuration{
		API:      NewDefaultAPIConfig(file.Section("api")),
		Database: NewDefaultDatabaseConfig(file.Section("db")),
		LOG:      NewDefaultLogConfig(file.Section("log")),
		Mail:     NewMailConfig(file.Section("mail")),
		Reminder: NewReminderConfig(file.Section("reminder")),
	}
}
