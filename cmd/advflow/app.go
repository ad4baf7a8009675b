package main

import (
	"io"

	"advflow/app/config"
	"advflow/app/db"
	"advflow/app/mailer"
	"advflow/app/objects"
	"advflow/app/workflow"
	"advflow/pkg/log"

	cli "github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

// application is everything a command needs, built from the config file.
type application struct {
	cfg         *config.Configuration
	conn        *gorm.DB
	definitions *objects.DefinitionStore
	targets     *objects.ContentRepository
	svc         workflow.Services
	engine      *workflow.Engine
}

func setup(command *cli.Command) (*application, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}
	if err := log.Initialize(cfg.LOG); err != nil {
		return nil, err
	}

	conn, err := db.Open(&db.Config{
		Connection:  cfg.Database.Connection,
		Debug:       cfg.Database.Debug,
		PoolSize:    cfg.Database.PoolSize,
		IdleTimeout: cfg.Database.IdleTimeout,
	})
	if err != nil {
		return nil, err
	}

	app := &application{
		cfg:         cfg,
		conn:        conn,
		definitions: objects.NewDefinitionStore(conn),
		targets:     objects.NewContentRepository(conn),
	}
	app.svc = workflow.Services{
		Definitions: app.definitions,
		Instances:   objects.NewInstanceStore(conn),
		Targets:     app.targets,
		Principals:  objects.NewMemberDirectory(conn),
		Transport:   mailer.New(cfg.Mail),
	}
	app.engine = workflow.NewEngine(app.svc, workflow.WithMetrics(workflow.NewMetrics()))
	return app, nil
}

func (app *application) Close() {
	if closer, ok := app.svc.Transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warnf(nil, "close mail transport failed, error: %s", err.Error())
		}
	}
	if sqlDB, err := app.conn.DB(); err == nil {
		sqlDB.Close()
	}
}
