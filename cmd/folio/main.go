package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/folio/internal"
	"github.com/starford/folio/internal/folio"
	pkgconfig "github.com/starford/folio/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.Root().String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, version, internal.WithConfig(cfg))
}

// oneShot runs fn against the facade and prints its result as JSON.
func oneShot(fn func(ctx context.Context, cmd *cli.Command, app *folio.App) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return internal.Exec(ctx, func(ctx context.Context, app *folio.App) error {
			out, err := fn(ctx, cmd, app)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	}
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

func main() {
	workspaceFlag := &cli.StringFlag{
		Name:    "workspace",
		Aliases: []string{"w"},
		Usage:   "Workspace ID (defaults to the active workspace)",
	}

	cmd := &cli.Command{
		Name:    "folio",
		Usage:   "Folder-backed Markdown notes with link graph, notebooks and live sync",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:  "sync",
				Usage: "Reconcile a workspace with its folder",
				Flags: []cli.Flag{workspaceFlag},
				Action: oneShot(func(ctx context.Context, cmd *cli.Command, app *folio.App) (any, error) {
					return app.SyncWorkspace(ctx, cmd.String("workspace"))
				}),
			},
			{
				Name:  "scan",
				Usage: "Print the Markdown tree of a workspace",
				Flags: []cli.Flag{workspaceFlag},
				Action: oneShot(func(ctx context.Context, cmd *cli.Command, app *folio.App) (any, error) {
					return app.ScanWorkspace(ctx, cmd.String("workspace"))
				}),
			},
			{
				Name:  "workspace",
				Usage: "Manage registered workspaces",
				Commands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Register a folder as a workspace",
						ArgsUsage: "<folder>",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "activate", Usage: "Also make it the active workspace"},
						},
						Action: oneShot(func(ctx context.Context, cmd *cli.Command, app *folio.App) (any, error) {
							folder, err := requireArg(cmd, "folder")
							if err != nil {
								return nil, err
							}
							ws, err := app.RegisterWorkspace(ctx, folder)
							if err != nil || !cmd.Bool("activate") {
								return ws, err
							}
							return app.ActivateWorkspace(ctx, ws.ID)
						}),
					},
					{
						Name:      "activate",
						Usage:     "Make a workspace the active one",
						ArgsUsage: "<id>",
						Action: oneShot(func(ctx context.Context, cmd *cli.Command, app *folio.App) (any, error) {
							id, err := requireArg(cmd, "workspace id")
							if err != nil {
								return nil, err
							}
							return app.ActivateWorkspace(ctx, id)
						}),
					},
					{
						Name:  "list",
						Usage: "List registered workspaces",
						Action: oneShot(func(ctx context.Context, _ *cli.Command, app *folio.App) (any, error) {
							return app.ListWorkspaces(ctx)
						}),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
