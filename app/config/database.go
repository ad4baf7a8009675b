package config

import (
	"fmt"

	"github.com/go-ini/ini"
)

type DatabaseConfig struct {
	Connection  string `json:"connection"`
	Debug       bool   `json:"debug"`
	PoolSize    int    `json:"pool_size"`
	IdleTimeout int    `json:"idle_timeout"`
}

// NewDefaultDatabaseConfig builds the connection url from the [db] section.
// "connection" wins when set; otherwise a mysql url is assembled from
// host/port/user/passwd, and without a host a local sqlite file is used.
func NewDefaultDatabaseConfig(c *ini.Section) DatabaseConfig {
	conn := c.Key("connection").String()
	host := c.Key("host").String()
	if conn == "" && host != "" {
		port := c.Key("port").MustString("3306")
		user := c.Key("user").Value()
		passwd := c.Key("passwd").Value()
		name := c.Key("name").MustString("advflow")
		conn = fmt.Sprintf("mysql://%s:%s@%s:%s/%s?charset=utf8&parseTime=True&loc=Local", user, passwd, host, port, name)
	}
	if conn == "" {
		conn = "sqlite:///var/lib/advflow/advflow.db"
	}
	debug, _ := c.Key("debug").Bool()
	return DatabaseConfig{
		Connection:  conn,
		Debug:       debug,
		PoolSize:    c.Key("pool_size").MustInt(5),
		IdleTimeout: c.Key("idle_timeout").MustInt(3600),
	}
}
