package didcontract

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultGasLimit is the default gas limit for registry transactions.
const DefaultGasLimit = 3000000

// DefaultReceiptTimeout bounds the wait for a transaction receipt.
const DefaultReceiptTimeout = 30 * time.Second

// DefaultPollInterval is the first delay between receipt polls.
const DefaultPollInterval = 500 * time.Millisecond

// defaultGasPrice is 0 for gas-free chains.
var defaultGasPrice = big.NewInt(0)

// Config holds configuration for the WeIdentity registry client.
type Config struct {
	// RPCURL is the blockchain RPC endpoint URL. Required.
	RPCURL string
	// ContractAddress is the address of the WeIdentity registry contract.
	// Required and must be a valid hex address.
	ContractAddress string
	// ChainID is the blockchain network chain ID.
	// Required and must be greater than 0.
	ChainID int64
	// GasPrice is the gas price for transactions (in wei).
	// Defaults to 0 for gas-free chains.
	GasPrice *big.Int
	// GasLimit is the gas limit for transactions.
	// Defaults to DefaultGasLimit if not set.
	GasLimit uint64
	// ReceiptTimeout bounds how long a write waits to be mined.
	ReceiptTimeout time.Duration
	// PollInterval is the initial interval between receipt polls.
	PollInterval time.Duration
}

// Validate checks that required fields are present and valid.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("RPC URL is required")
	}

	if !common.IsHexAddress(c.ContractAddress) {
		return errors.New("contract address is required")
	}

	if c.ChainID <= 0 {
		return errors.New("chain ID must be greater than 0, it's required")
	}

	return nil
}

// Standardize sets default values for optional fields.
func (c *Config) Standardize() {
	if c.GasLimit == 0 {
		c.GasLimit = DefaultGasLimit
	}

	if c.GasPrice == nil {
		c.GasPrice = defaultGasPrice
	}

	if c.ReceiptTimeout <= 0 {
		c.ReceiptTimeout = DefaultReceiptTimeout
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// registryRecord is the decoded output of getDocument.
type registryRecord struct {
	Document    string
	Fingerprint [32]byte
	Created     *big.Int
	Updated     *big.Int
	Deactivated bool
	Version     *big.Int
}
