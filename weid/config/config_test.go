package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	for _, name := range []string{EnvChainID, EnvRPC, EnvContractAddress, EnvDBPath, EnvBackend} {
		t.Setenv(name, "")
	}

	assert.Equal(t, Env{
		ChainID: DefaultChainID,
		DBPath:  DefaultDBPath,
		Backend: DefaultBackend,
	}, FromEnv())
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvChainID, "101")
	t.Setenv(EnvRPC, "http://127.0.0.1:8545")
	t.Setenv(EnvContractAddress, "0x0000000000000000000000000000000000018888")
	t.Setenv(EnvDBPath, "/tmp/ledger.db")
	t.Setenv(EnvBackend, "SQLite")

	assert.Equal(t, Env{
		ChainID:         101,
		RPC:             "http://127.0.0.1:8545",
		ContractAddress: "0x0000000000000000000000000000000000018888",
		DBPath:          "/tmp/ledger.db",
		Backend:         BackendSQLite,
	}, FromEnv())
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv(EnvChainID, "mainnet")
	t.Setenv(EnvBackend, "postgres")

	assert.Equal(t, DefaultChainID, ChainID())
	assert.Equal(t, DefaultBackend, Backend())
}
