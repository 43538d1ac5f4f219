package main

import (
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"github.com/pilacorp/go-weid-sdk/weid/config"
)

var Version = "dev"

func main() {
	env := config.FromEnv()

	app := &cli.App{
		Name:  "weid",
		Usage: "Create WeIdentity DIDs and manage their documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend",
				Value: env.Backend,
				Usage: "ledger backend: memory (per process), sqlite or evm",
			},
			&cli.Int64Flag{
				Name:  "chain-id",
				Value: env.ChainID,
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: env.DBPath,
				Usage: "sqlite database file",
			},
			&cli.StringFlag{
				Name:  "rpc-url",
				Value: env.RPC,
			},
			&cli.StringFlag{
				Name:  "contract-address",
				Value: env.ContractAddress,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log at debug level",
			},
		},
		Before: func(cmd *cli.Context) error {
			level := slog.LevelInfo
			if cmd.Bool("debug") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			runCreate,
			runDocument,
			runMetadata,
			runExists,
			runDeactivated,
			runAddAuthentication,
			runRevokeAuthentication,
			runAddService,
			runList,
			runCount,
			runLookup,
			runDeactivate,
		},
		ErrWriter: os.Stderr,
		Version:   Version,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
