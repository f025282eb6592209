package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/lodestone/internal/app"
	"github.com/florianilch/lodestone/internal/launcher"
	"github.com/florianilch/lodestone/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "lodestone",
		Usage: "Game launcher session and config manager",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: app.DefaultConfigLogExporter,
			},
			&cli.StringFlag{
				Name:  "otlp-endpoint",
				Usage: "OTLP endpoint URL for the log exporter",
			},
			&cli.StringFlag{
				Name:  "remote--base-url",
				Usage: "backing store base URL",
			},
			&cli.DurationFlag{
				Name:  "persist--save-timeout",
				Usage: "timeout for a single document save",
			},
		},
		Commands: []*cli.Command{
			hostCommand(),
			loginCommand(),
			logoutCommand(),
			accountsCommand(),
			selectCommand(),
			refreshCommand(),
			pickJarCommand(),
			configCommand(),
		},
	}
}

func hostCommand() *cli.Command {
	return &cli.Command{
		Name:  "host",
		Usage: "backing store server",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "run the backing store server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host--host",
						Usage: "server host",
						Value: app.DefaultConfigHostHost,
					},
					&cli.IntFlag{
						Name:  "host--port",
						Usage: "server port",
						Value: int(app.DefaultConfigHostPort),
					},
					&cli.StringFlag{
						Name:  "host--data-dir",
						Usage: "directory documents are stored in",
					},
					&cli.StringFlag{
						Name:  "host--credentials",
						Usage: "credentials storage (file|keyring)",
						Value: string(app.DefaultConfigCredentials),
					},
					&cli.StringFlag{
						Name:  "host--keyring-user",
						Usage: "keyring user for credentials storage",
					},
					&cli.StringFlag{
						Name:  "host--jar-file",
						Usage: "path returned by the jar file picker",
					},
				},
				Action: hostStartAction,
			},
		},
	}
}

func hostStartAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// setup loads the config and installs the logging pipeline. The returned
// func flushes pending log records.
func setup(ctx context.Context, cmd *cli.Command) (*app.Config, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, observability.Options{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Exporter: cfg.LogExporter,
		Endpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	return cfg, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Shutdown.Timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush logs:", err)
		}
	}, nil
}

// withLauncher runs fn against a launcher whose state was loaded from the
// backing store.
func withLauncher(fn func(context.Context, *cli.Command, *launcher.Service) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, shutdown, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer shutdown()

		l, err := app.NewLauncher(ctx, cfg)
		if err != nil {
			return err
		}

		return l.Run(ctx, func(ctx context.Context, svc *launcher.Service) error {
			return fn(ctx, cmd, svc)
		})
	}
}

func userIDArg(cmd *cli.Command) (string, error) {
	userID := cmd.Args().First()
	if userID == "" {
		return "", fmt.Errorf("%s: missing <user-id> argument", cmd.Name)
	}
	return userID, nil
}

// expiryFrom converts an expires_in duration into an absolute expiry.
func expiryFrom(now time.Time, expiresIn time.Duration) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(expiresIn)
}
