package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/renholt/crossbar/internal"
	"github.com/renholt/crossbar/internal/cec"
	"github.com/renholt/crossbar/internal/matrixstate"
	"github.com/renholt/crossbar/internal/mcpserver"
	"github.com/renholt/crossbar/internal/scenes"
	"github.com/renholt/crossbar/internal/transport"
	pkgconfig "github.com/renholt/crossbar/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// runMCP serves the CEC controller over MCP stdio. Stdout belongs to the
// protocol, so logging is discarded.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := scenes.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init scene db: %w", err)
	}
	defer db.Close()

	state := matrixstate.New(cfg.Matrix.Inputs, cfg.Matrix.Outputs)
	unit, err := transport.NewHTTPClient(cfg.Matrix.ControlURL, cfg.Matrix.ControlTimeout)
	if err != nil {
		return fmt.Errorf("init unit transport: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctrl := cec.NewController(state, db, unit, logger, nil)

	return mcpserver.New(ctrl, db).ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "crossbar",
		Usage:  "CEC target resolution and command dispatch for an HDMI matrix switcher",
		Action: run,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the CEC controller over MCP stdio",
				Action: runMCP,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
