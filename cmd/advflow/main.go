package main

import (
	"context"
	"os"

	"advflow/pkg/log"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "advflow",
		EnableShellCompletion: true,
		Usage:                 "Content approval workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the ini configuration file",
				Sources: cli.EnvVars("ADVFLOW_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			importCommand(),
			remindCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error(nil, err)
		os.Exit(1)
	}
}
