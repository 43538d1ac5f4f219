package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/pilacorp/go-weid-sdk/weid"
	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/config"
	"github.com/pilacorp/go-weid-sdk/weid/didcontract"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/engine/sqlstore"
)

// openEngine builds the ledger engine selected by the global flags.
func openEngine(cmd *cli.Context) (engine.Engine, error) {
	c := codec.New(cmd.Int64("chain-id"))

	switch backend := cmd.String("backend"); backend {
	case config.BackendMemory:
		return engine.NewMemory(c), nil
	case config.BackendSQLite:
		return sqlstore.Open(cmd.String("db-path"), c)
	case config.BackendEVM:
		return didcontract.NewContract(cmd.Context, &didcontract.Config{
			RPCURL:          cmd.String("rpc-url"),
			ContractAddress: cmd.String("contract-address"),
			ChainID:         cmd.Int64("chain-id"),
		}, c)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// withService runs fn against a service over a freshly opened engine.
func withService(cmd *cli.Context, fn func(*weid.Service, engine.Engine) error) error {
	e, err := openEngine(cmd)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", cmd.String("backend"), err)
	}
	if closer, ok := e.(io.Closer); ok {
		defer closer.Close()
	}

	s, err := weid.New(e,
		weid.WithChainID(cmd.Int64("chain-id")),
		weid.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	return fn(s, e)
}
