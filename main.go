package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drawpile/listform/db"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := run(context.Background(), os.Args, os.Stdout); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		logLevel  string
		logFormat string
		logColor  bool
		logger    *slog.Logger
	)

	app := &cli.Command{
		Name:   "listform",
		Usage:  "Session listing server with a browser announcement form",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Value:       "info",
				Destination: &logLevel,
				Sources:     cli.EnvVars("LF_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (console, json)",
				Value:       "console",
				Destination: &logFormat,
				Sources:     cli.EnvVars("LF_LOG_FORMAT"),
			},
			&cli.BoolFlag{
				Name:        "log-color",
				Usage:       "colorize console log output",
				Destination: &logColor,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			l, err := newLogger(os.Stderr, logLevel, logFormat, logColor)
			if err != nil {
				return ctx, err
			}
			logger = l
			slog.SetDefault(l)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdServe(&logger),
			cmdHashPassword(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger != nil {
			logger.Error("failed to run", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

func cmdServe(logger **slog.Logger) *cli.Command {
	var cfgFile, listenAddr, dbName string

	return &cli.Command{
		Name:  "serve",
		Usage: "run the listing server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "configuration file",
				Destination: &cfgFile,
			},
			&cli.StringFlag{
				Name:        "listen",
				Aliases:     []string{"l"},
				Usage:       "listening address",
				Destination: &listenAddr,
			},
			&cli.StringFlag{
				Name:        "database",
				Aliases:     []string{"d"},
				Usage:       "database (\"memory\" or a SQLite file path)",
				Destination: &dbName,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}

			// Command line arguments override the configuration file
			if len(listenAddr) > 0 {
				cfg.Listen = listenAddr
			}
			if len(dbName) > 0 {
				cfg.Database = dbName
			}

			(*logger).Info("Configuration loaded", "config", cfg)

			database, err := db.InitDatabase(cfg.Database, cfg.SessionTimeout)
			if err != nil {
				return goerr.Wrap(err, "failed to open database", goerr.V("database", cfg.Database))
			}
			defer database.Close()

			srv, err := newServer(cfg, database, *logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.serve(ctx)
		},
	}
}

func cmdHashPassword() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "print a hash for the adminpasshash setting",
		ArgsUsage: "PASSWORD",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("expected exactly one password argument")
			}

			hash, err := hashPassword(c.Args().First())
			if err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, hash)
			return nil
		},
	}
}
