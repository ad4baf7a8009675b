package config

import (
	"fmt"

	"github.com/go-ini/ini"
)

type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func NewDefaultAPIConfig(c *ini.Section) APIConfig {
	return APIConfig{
		Host: c.Key("host").MustString("0.0.0.0"),
		Port: c.Key("port").MustInt(8791),
	}
}
