// main.go
// In main.go we wire everything together: load an optional .env file, turn flags
// (or their RELAY_* environment variables) into a Config, and run the relay until
// the process is interrupted.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(serve).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg Config) error {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, level)
	return NewServer(cfg, log).Run(ctx)
}

// newCommand builds the CLI. run receives the validated configuration.
func newCommand(run func(context.Context, Config) error) *cli.Command {
	def := DefaultConfig()
	return &cli.Command{
		Name:  "relay-chat",
		Usage: "line-oriented chat relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   def.Addr,
				Usage:   "TCP address to listen on",
				Sources: cli.EnvVars("RELAY_ADDR"),
			},
			&cli.StringFlag{
				Name:    "ws-addr",
				Usage:   "address for the websocket bridge (disabled when empty)",
				Sources: cli.EnvVars("RELAY_WS_ADDR"),
			},
			&cli.IntFlag{
				Name:    "inbox-size",
				Value:   def.InboxSize,
				Usage:   "broadcasts queued per client before senders block",
				Sources: cli.EnvVars("RELAY_INBOX_SIZE"),
			},
			&cli.IntFlag{
				Name:    "max-line",
				Value:   def.MaxLineBytes,
				Usage:   "longest accepted line in bytes, terminator included",
				Sources: cli.EnvVars("RELAY_MAX_LINE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   def.LogLevel,
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("RELAY_LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := Config{
				Addr:         cmd.String("addr"),
				WSAddr:       cmd.String("ws-addr"),
				InboxSize:    cmd.Int("inbox-size"),
				MaxLineBytes: cmd.Int("max-line"),
				LogLevel:     cmd.String("log-level"),
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(ctx, cfg)
		},
	}
}
