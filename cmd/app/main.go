package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/caged/internal"
	"github.com/starford/caged/internal/extract"
	pkgconfig "github.com/starford/caged/pkg/config"
)

// loadConfig reads the config file. An explicitly named file must exist;
// the default path may be absent, in which case built-in defaults apply.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// initLogger installs a text logger on stderr for the one-shot commands.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func tui(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunTUI(ctx, cmd.String("out"), internal.WithConfig(cfg))
}

func extractPDFs(ctx context.Context, cmd *cli.Command) error {
	initLogger(cmd.Bool("debug"))
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("usage: %s extract <dir>", cmd.Root().Name)
	}
	results, err := extract.Batch(ctx, dir, extract.PDF{}, int(cmd.Int("jobs")))
	if err != nil {
		return err
	}
	return extract.Dump(os.Stdout, dir, results)
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
		Name:   "caged",
		Usage:  "CAGED fretboard sessions with box/edit modes, PDF and MIDI export, and a PDF tutorial index",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and SSE server",
				Action: serve,
			},
			{
				Name:      "extract",
				Usage:     "Print the text of every PDF in a directory",
				ArgsUsage: "<dir>",
				Action:    extractPDFs,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "Concurrent extractions", Value: extract.DefaultLimit},
					&cli.BoolFlag{Name: "debug", Usage: "Verbose logging"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: mcp,
			},
			{
				Name:   "tui",
				Usage:  "Open a session in the terminal",
				Action: tui,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Directory for exports", Value: "."},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
