package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mindmap/internal"
	"github.com/starford/mindmap/internal/client"
	"github.com/starford/mindmap/internal/commands"
	pkgconfig "github.com/starford/mindmap/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
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

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// clientEnv builds the command environment for the client subcommands. The
// server and token flags override the config file.
func clientEnv(cmd *cli.Command) (*commands.Env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("server") {
		cfg.Client.BaseURL = cmd.String("server")
	}
	if cmd.IsSet("token") {
		cfg.Client.Token = cmd.String("token")
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	c := client.New(cfg.Client.BaseURL,
		client.WithToken(cfg.Client.Token),
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(logger),
	)
	return &commands.Env{Client: c, Out: os.Stdout, SaveDelay: cfg.Client.SaveDelay, Logger: logger}, nil
}

// withEnv adapts a command body that needs n positional arguments.
func withEnv(n int, fn func(ctx context.Context, env *commands.Env, cmd *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() < n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", cmd.Name, n, cmd.Args().Len())
		}
		env, err := clientEnv(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, env, cmd)
	}
}

func mapsCommand() *cli.Command {
	return &cli.Command{
		Name:  "maps",
		Usage: "Work with mind maps on a running backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Backend origin",
				Sources: cli.EnvVars("MINDMAP_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token",
				Sources: cli.EnvVars("MINDMAP_TOKEN"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List maps",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Filter by status (draft, published)"},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Filter by title"},
				},
				Action: withEnv(0, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.List(ctx, env, cmd.String("status"), cmd.String("query"))
				}),
			},
			{
				Name:      "create",
				Usage:     "Create an empty draft map",
				ArgsUsage: "TITLE",
				Action: withEnv(1, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Create(ctx, env, cmd.Args().First())
				}),
			},
			{
				Name:      "show",
				Usage:     "Print a map with its nodes and diagram",
				ArgsUsage: "MAP_ID",
				Action: withEnv(1, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Show(ctx, env, cmd.Args().First())
				}),
			},
			{
				Name:      "export",
				Usage:     "Print the Mermaid diagram of a map",
				ArgsUsage: "MAP_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "remote", Usage: "Render on the backend instead of locally"},
				},
				Action: withEnv(1, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Export(ctx, env, cmd.Args().First(), cmd.Bool("remote"))
				}),
			},
			{
				Name:      "add-node",
				Usage:     "Add a node to a map",
				ArgsUsage: "MAP_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: "idea", Usage: "Node type"},
					&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Node label"},
					&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "Connect from this node"},
				},
				Action: withEnv(1, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.AddNode(ctx, env, cmd.Args().First(),
						cmd.String("type"), cmd.String("label"), cmd.String("parent"))
				}),
			},
			{
				Name:      "connect",
				Usage:     "Connect two nodes",
				ArgsUsage: "MAP_ID SOURCE_ID TARGET_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Edge label"},
				},
				Action: withEnv(3, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					args := cmd.Args()
					return commands.Connect(ctx, env, args.Get(0), args.Get(1), args.Get(2), cmd.String("label"))
				}),
			},
			{
				Name:      "rename",
				Usage:     "Rename a map",
				ArgsUsage: "MAP_ID TITLE",
				Action: withEnv(2, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Rename(ctx, env, cmd.Args().Get(0), cmd.Args().Get(1))
				}),
			},
			{
				Name:      "duplicate",
				Usage:     "Copy a map",
				ArgsUsage: "MAP_ID",
				Action: withEnv(1, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Duplicate(ctx, env, cmd.Args().First())
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a map",
				ArgsUsage: "MAP_ID",
				Action: withEnv(1, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Delete(ctx, env, cmd.Args().First())
				}),
			},
			{
				Name:      "expand",
				Usage:     "Grow a map with AI suggested nodes",
				ArgsUsage: "MAP_ID PROMPT",
				Action: withEnv(2, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Expand(ctx, env, cmd.Args().Get(0), cmd.Args().Get(1))
				}),
			},
			{
				Name:      "publish",
				Usage:     "Publish a map as a project",
				ArgsUsage: "MAP_ID",
				Action: withEnv(1, func(ctx context.Context, env *commands.Env, cmd *cli.Command) error {
					return commands.Publish(ctx, env, cmd.Args().First())
				}),
			},
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "mindmap",
		Usage: "Mind-map editor backend, MCP server and command line client",
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
				Usage:  "Run the HTTP backend",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
			mapsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
