// Package config reads deployment defaults for the WeIdentity DID service
// from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Default values
const (
	DefaultChainID = int64(1)
	DefaultDBPath  = "weid.db"
	DefaultBackend = BackendMemory
)

// Ledger backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendEVM    = "evm"
)

// Environment variable names
const (
	EnvChainID         = "WEID_CHAIN_ID"
	EnvRPC             = "WEID_RPC_URL"
	EnvContractAddress = "WEID_CONTRACT_ADDRESS"
	EnvDBPath          = "WEID_DB_PATH"
	EnvBackend         = "WEID_BACKEND"
)

// Env is the environment-derived configuration.
type Env struct {
	ChainID         int64
	RPC             string
	ContractAddress string
	DBPath          string
	Backend         string
}

// FromEnv collects every setting from the environment.
func FromEnv() Env {
	return Env{
		ChainID:         ChainID(),
		RPC:             RPC(),
		ContractAddress: ContractAddress(),
		DBPath:          DBPath(),
		Backend:         Backend(),
	}
}

// ChainID returns the chain id from environment variable or default value
func ChainID() int64 {
	if chainIDStr := os.Getenv(EnvChainID); chainIDStr != "" {
		if chainID, err := strconv.ParseInt(chainIDStr, 10, 64); err == nil {
			return chainID
		}
	}
	return DefaultChainID
}

// RPC returns the RPC URL from environment variable. There is no default.
func RPC() string {
	return os.Getenv(EnvRPC)
}

// ContractAddress returns the registry contract address from environment variable.
func ContractAddress() string {
	return os.Getenv(EnvContractAddress)
}

// DBPath returns the sqlite database path from environment variable or default value
func DBPath() string {
	if path := os.Getenv(EnvDBPath); path != "" {
		return path
	}
	return DefaultDBPath
}

// Backend returns the ledger backend name. Unknown names fall back to the default.
func Backend() string {
	switch backend := strings.ToLower(os.Getenv(EnvBackend)); backend {
	case BackendMemory, BackendSQLite, BackendEVM:
		return backend
	default:
		return DefaultBackend
	}
}
