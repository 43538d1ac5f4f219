package weid

import (
	"log/slog"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
)

// Default configuration values for the WeIdentity DID service.
//
// These values can be overridden using options when creating a Service.
const (
	// DefaultChainID is the chain id embedded in generated DIDs.
	DefaultChainID = int64(1)
	// DefaultLookupParallelism bounds concurrent ledger queries of
	// GetWeIdListByPubKeyList.
	DefaultLookupParallelism = 8
)

// Codec converts between DIDs, addresses and key encodings.
//
// *codec.Codec implements it.
type Codec interface {
	GenerateKeyPair() (*codec.KeyPair, error)
	WeIdFromPublicKey(publicKey string) (string, error)
	WeIdFromAddress(address string) string
	AddressFromWeId(weId string) (string, error)
	IsKeyPairMatch(privateKey, publicKey string) bool
	NormalizePublicKey(publicKey string) (string, error)
}

// Config holds configuration for the service.
type Config struct {
	// ChainID is the chain id of DIDs produced by the default codec.
	ChainID int64
	// Logger receives structured operation logs. Private keys are never
	// logged.
	Logger *slog.Logger
	// LookupParallelism bounds concurrent lookups of GetWeIdListByPubKeyList.
	LookupParallelism int
	// Codec overrides the default codec for ChainID.
	Codec Codec
}

// Option is a functional option type for configuring a Service.
type Option func(*Config)

// WithChainID sets the chain id embedded in DIDs.
func WithChainID(chainID int64) Option {
	return func(c *Config) { c.ChainID = chainID }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithLookupParallelism sets how many public keys are looked up at once.
func WithLookupParallelism(n int) Option {
	return func(c *Config) { c.LookupParallelism = n }
}

// WithCodec replaces the default codec.
func WithCodec(cd Codec) Option {
	return func(c *Config) { c.Codec = cd }
}

// WithConfig sets the complete configuration from a Config struct.
func WithConfig(config *Config) Option {
	return func(c *Config) {
		c.ChainID = config.ChainID
		c.Logger = config.Logger
		c.LookupParallelism = config.LookupParallelism
		c.Codec = config.Codec
	}
}

func resolveConfig(options ...Option) Config {
	cfg := Config{
		ChainID:           DefaultChainID,
		LookupParallelism: DefaultLookupParallelism,
	}
	for _, opt := range options {
		opt(&cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.New(cfg.ChainID)
	}
	return cfg
}
