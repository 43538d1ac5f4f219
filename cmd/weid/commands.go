package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pilacorp/go-weid-sdk/weid"
	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
	"github.com/pilacorp/go-weid-sdk/weid/validation"
)

var privateKeyFlag = &cli.StringFlag{
	Name:     "private-key",
	Required: true,
	Usage:    "decimal private key of the weid",
	EnvVars:  []string{"WEID_PRIVATE_KEY"},
}

var runCreate = &cli.Command{
	Name:  "create",
	Usage: "registers a new weid, generating a key pair unless one is given",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "public-key",
			Usage: "decimal or base64 public key",
		},
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "decimal private key matching --public-key",
			EnvVars: []string{"WEID_PRIVATE_KEY"},
		},
	},
	Action: func(cmd *cli.Context) error {
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			if cmd.String("public-key") == "" {
				return emit(cmd, s.CreateWeId(cmd.Context))
			}
			return emit(cmd, s.CreateWeIdWithArgs(cmd.Context, &weid.CreateWeIdArgs{
				PublicKey:      cmd.String("public-key"),
				WeIdPrivateKey: &codec.PrivateKey{PrivateKey: cmd.String("private-key")},
			}))
		})
	},
}

var runDocument = &cli.Command{
	Name:      "document",
	Usage:     "prints the document of a weid",
	ArgsUsage: "<weid>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print the document JSON with its @context",
		},
	},
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			if cmd.Bool("json") {
				resp := s.GetWeIdDocumentJson(cmd.Context, weId)
				if !resp.IsSuccess() {
					return emit(cmd, resp)
				}
				fmt.Fprintln(cmd.App.Writer, resp.Result)
				return nil
			}
			return emit(cmd, s.GetWeIdDocument(cmd.Context, weId))
		})
	},
}

var runMetadata = &cli.Command{
	Name:      "metadata",
	Usage:     "prints the ledger metadata of a weid",
	ArgsUsage: "<weid>",
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.GetWeIdDocumentMetadata(cmd.Context, weId))
		})
	},
}

var runExists = &cli.Command{
	Name:      "exists",
	Usage:     "reports whether a weid is registered",
	ArgsUsage: "<weid>",
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.IsWeIdExist(cmd.Context, weId))
		})
	},
}

var runDeactivated = &cli.Command{
	Name:      "deactivated",
	Usage:     "reports whether a weid has been deactivated",
	ArgsUsage: "<weid>",
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.IsDeactivated(cmd.Context, weId))
		})
	},
}

var runAddAuthentication = &cli.Command{
	Name:      "add-authentication",
	Usage:     "adds an authentication key to a weid document",
	ArgsUsage: "<weid>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "public-key",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "controller",
			Usage: "controlling weid, defaults to the weid itself",
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "authentication id, derived from the key when empty",
		},
		privateKeyFlag,
	},
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.SetAuthentication(cmd.Context, weId, &weid.AuthenticationArgs{
				Id:         cmd.String("id"),
				Controller: cmd.String("controller"),
				PublicKey:  cmd.String("public-key"),
			}, privateKey(cmd)))
		})
	},
}

var runRevokeAuthentication = &cli.Command{
	Name:      "revoke-authentication",
	Usage:     "removes an authentication key, matched by public key or else by id",
	ArgsUsage: "<weid>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name: "public-key",
		},
		&cli.StringFlag{
			Name: "id",
		},
		privateKeyFlag,
	},
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.RevokeAuthentication(cmd.Context, weId, &weid.AuthenticationArgs{
				Id:        cmd.String("id"),
				PublicKey: cmd.String("public-key"),
			}, privateKey(cmd)))
		})
	},
}

var runAddService = &cli.Command{
	Name:      "add-service",
	Usage:     "publishes a service endpoint in a weid document",
	ArgsUsage: "<weid>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "endpoint",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "service id, derived from the endpoint when empty",
		},
		privateKeyFlag,
	},
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.SetService(cmd.Context, weId, &weid.ServiceArgs{
				Id:              cmd.String("id"),
				Type:            cmd.String("type"),
				ServiceEndpoint: cmd.String("endpoint"),
			}, privateKey(cmd)))
		})
	},
}

var runList = &cli.Command{
	Name:  "list",
	Usage: "lists registered weids in registration order",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "first",
			Value: 0,
		},
		&cli.IntFlag{
			Name:  "last",
			Value: 100,
			Usage: "exclusive end position",
		},
	},
	Action: func(cmd *cli.Context) error {
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.GetWeIdList(cmd.Context, cmd.Int("first"), cmd.Int("last")))
		})
	},
}

var runCount = &cli.Command{
	Name:  "count",
	Usage: "prints the number of registered weids",
	Action: func(cmd *cli.Context) error {
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.GetWeIdCount(cmd.Context))
		})
	},
}

var runLookup = &cli.Command{
	Name:      "lookup",
	Usage:     "resolves public keys to their registered weids",
	ArgsUsage: "<public-key>...",
	Action: func(cmd *cli.Context) error {
		keys := make([]codec.PublicKey, 0, cmd.NArg())
		for _, arg := range cmd.Args().Slice() {
			keys = append(keys, codec.PublicKey{PublicKey: arg})
		}
		return withService(cmd, func(s *weid.Service, _ engine.Engine) error {
			return emit(cmd, s.GetWeIdListByPubKeyList(cmd.Context, keys))
		})
	},
}

var runDeactivate = &cli.Command{
	Name:      "deactivate",
	Usage:     "permanently deactivates a weid",
	ArgsUsage: "<weid>",
	Flags: []cli.Flag{
		privateKeyFlag,
	},
	Action: func(cmd *cli.Context) error {
		weId, err := weIdArg(cmd)
		if err != nil {
			return err
		}
		return withService(cmd, func(_ *weid.Service, e engine.Engine) error {
			deactivator, ok := e.(engine.Deactivator)
			if !ok {
				return fmt.Errorf("%s backend cannot deactivate", cmd.String("backend"))
			}
			c := codec.New(cmd.Int64("chain-id"))
			if !validation.IsWeIdCanonical(c, weId) {
				return emit(cmd, protocol.NewResponse(false, errcode.WeIdInvalid))
			}
			address, err := c.AddressFromWeId(weId)
			if err != nil {
				return emit(cmd, protocol.NewResponse(false, errcode.WeIdInvalid))
			}

			tx, err := deactivator.Deactivate(cmd.Context, address, privateKey(cmd).PrivateKey)
			if err != nil {
				return emit(cmd, protocol.NewResponse(false, errcode.FromError(err)))
			}
			return emit(cmd, protocol.NewResponse(true, errcode.Success).WithTransaction(tx))
		})
	},
}

func weIdArg(cmd *cli.Context) (string, error) {
	if cmd.NArg() != 1 {
		return "", errors.New("expected exactly one weid argument")
	}
	return cmd.Args().First(), nil
}

func privateKey(cmd *cli.Context) *codec.PrivateKey {
	return &codec.PrivateKey{PrivateKey: cmd.String("private-key")}
}

// emit prints resp and fails the command when it carries an error code.
func emit[T any](cmd *cli.Context, resp protocol.Response[T]) error {
	enc := json.NewEncoder(cmd.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return cli.Exit("", 1)
	}
	return nil
}
