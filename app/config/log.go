package config

import (
	"github.com/go-ini/ini"
)

type LogConfig struct {
	Level           string `json:"level"`
	Format          string `json:"format"`
	TimestampFormat string `json:"timestamp_format"`
	// DirPath empty means log to stderr.
	DirPath string `json:"dir_path"`
}

func NewDefaultLogConfig(c *ini.Section) LogConfig {
	return LogConfig{
		Level:           c.Key("level").MustString("info"),
		Format:          c.Key("format").MustString("{{.timestamp}} {{.pid}} [{{.name}}] [{{.levelname}}] [{{.requestId}} {{.workflow}} {{.principal}}] {{.message}}"),
		TimestampFormat: c.Key("timestamp_format").MustString("2006-01-02 15:04:05.000"),
		DirPath:         c.Key("dir_path").String(),
	}
}
