package main

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"advflow/app/db"
	"advflow/app/objects"
	"advflow/pkg/contextx"
	"advflow/pkg/log"
	"advflow/web/handles"

	cli "github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the workflow HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address, overrides [api] host and port",
				Sources: cli.EnvVars("ADVFLOW_ADDR"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			app, err := setup(command)
			if err != nil {
				return err
			}
			defer app.Close()

			addr := command.String("addr")
			if addr == "" {
				addr = app.cfg.API.Addr()
			}
			server := &http.Server{
				Addr:    addr,
				Handler: handles.NewHandler(app.engine, app.svc, app.definitions).Router(),
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdown); err != nil {
					log.Warnf(nil, "shutdown failed, error: %s", err.Error())
				}
			}()

			log.Infof(nil, "Start running web server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema",
		Action: func(ctx context.Context, command *cli.Command) error {
			app, err := setup(command)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := db.Migrate(app.conn); err != nil {
				return err
			}
			log.Info(nil, "database migrated")
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import workflow definitions from YAML files",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "assign",
				Usage: "Assign the imported definition to a target, as type:id",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.NArg() == 0 {
				return errors.New("no definition files given")
			}
			var refs []objects.TargetRef
			for _, s := range command.StringSlice("assign") {
				parts := strings.SplitN(s, ":", 2)
				if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
					return fmt.Errorf("invalid target %q, want type:id", s)
				}
				refs = append(refs, objects.TargetRef{Type: parts[0], ID: parts[1]})
			}
			if len(refs) > 0 && command.NArg() > 1 {
				return errors.New("--assign needs a single definition file")
			}

			app, err := setup(command)
			if err != nil {
				return err
			}
			defer app.Close()

			wctx := contextx.NewAdminContext()
			for _, path := range command.Args().Slice() {
				data, err := ioutil.ReadFile(path)
				if err != nil {
					return err
				}
				def, err := objects.ParseDefinitionYAML(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := app.engine.Registry().Validate(def); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := app.definitions.Save(wctx, def); err != nil {
					return err
				}
				log.Infof(wctx, "imported definition %s (%s) from %s", def.Title, def.ID, path)

				for _, ref := range refs {
					if err := assign(wctx, app, ref, def); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func assign(ctx *contextx.Context, app *application, ref objects.TargetRef, def *objects.WorkflowDefinition) error {
	target, err := app.targets.Load(ctx, ref)
	if err != nil {
		return err
	}
	if target == nil {
		target = objects.NewTarget(ref, "")
	}
	target.DefinitionID = def.ID
	if err := app.targets.Save(ctx, target); err != nil {
		return err
	}
	log.Infof(ctx, "assigned definition %s to %s", def.ID, ref)
	return nil
}

func remindCommand() *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Mail reminders for idle workflows once",
		Action: func(ctx context.Context, command *cli.Command) error {
			app, err := setup(command)
			if err != nil {
				return err
			}
			defer app.Close()

			wctx := contextx.WithContext(ctx)
			wctx.SetRequestID("reminder-sweep")
			cfg := app.cfg.Reminder
			if cfg.From == "" {
				cfg.From = app.cfg.Mail.From
			}
			sent, err := app.engine.ReminderSweep(cfg).Sweep(wctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(command.Root().Writer, "%d reminders sent\n", sent)
			return nil
		},
	}
}
