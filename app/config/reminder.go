package config

import (
	"github.com/go-ini/ini"
)

type ReminderConfig struct {
	// Template is a pongo2 template for the reminder body; empty uses the
	// built-in one.
	Template string `json:"template"`
	From     string `json:"from"`
}

func NewReminderConfig(c *ini.Section) ReminderConfig {
	return ReminderConfig{
		Template: c.Key("template").String(),
		From:     c.Key("from").String(),
	}
}
