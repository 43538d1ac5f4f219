package didcontract

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
)

const (
	testChainID  = int64(704)
	testContract = "0x75e7b09a24bce5a921babe27b62ec7bfe2230d6a"
)

var (
	_ engine.Engine      = (*Contract)(nil)
	_ engine.Deactivator = (*Contract)(nil)
)

type entry struct {
	document    string
	fingerprint [32]byte
	created     int64
	updated     int64
	deactivated bool
	version     int64
}

// fakeChain emulates the registry contract. Receipts become visible after
// pendingPolls lookups.
type fakeChain struct {
	t            *testing.T
	mu           sync.Mutex
	entries      map[common.Address]*entry
	order        []common.Address
	receipts     map[common.Hash]*types.Receipt
	polls        map[common.Hash]int
	pendingPolls int
	nonce        uint64
	block        int64
	neverMine    bool
}

func newFakeChain(t *testing.T) *fakeChain {
	return &fakeChain{
		t:        t,
		entries:  make(map[common.Address]*entry),
		receipts: make(map[common.Hash]*types.Receipt),
		polls:    make(map[common.Hash]int),
	}
}

func (f *fakeChain) call(_ context.Context, method string, args ...any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch method {
	case "isIdentityExist":
		_, ok := f.entries[args[0].(common.Address)]
		return []any{ok}, nil
	case "getDocument":
		e, ok := f.entries[args[0].(common.Address)]
		if !ok {
			return []any{"", [32]byte{}, big.NewInt(0), big.NewInt(0), false, big.NewInt(0)}, nil
		}
		return []any{e.document, e.fingerprint, big.NewInt(e.created), big.NewInt(e.updated), e.deactivated, big.NewInt(e.version)}, nil
	case "getWeIdList":
		first, last := int(args[0].(*big.Int).Int64()), int(args[1].(*big.Int).Int64())
		last = min(last, len(f.order))
		if first >= last {
			return []any{[]common.Address{}}, nil
		}
		return []any{append([]common.Address(nil), f.order[first:last]...)}, nil
	case "getWeIdCount":
		return []any{big.NewInt(int64(len(f.order)))}, nil
	}
	return nil, errors.New("unknown method " + method)
}

func (f *fakeChain) transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	to := common.HexToAddress(testContract)
	f.nonce++
	tx, err := opts.Signer(opts.From, types.NewTx(&types.LegacyTx{
		Nonce:    f.nonce,
		To:       &to,
		Gas:      opts.GasLimit,
		GasPrice: opts.GasPrice,
		Data:     []byte(method),
	}))
	if err != nil {
		return nil, err
	}
	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(testChainID)), tx)
	require.NoError(f.t, err)
	require.Equal(f.t, opts.From, sender)

	status := types.ReceiptStatusSuccessful
	f.block++
	e := f.entries[sender]
	switch method {
	case "createWeId":
		if e != nil {
			status = types.ReceiptStatusFailed
			break
		}
		f.entries[sender] = &entry{document: args[0].(string), fingerprint: args[1].([32]byte), created: f.block, updated: f.block, version: 1}
		f.order = append(f.order, sender)
	case "updateWeId":
		if e == nil || e.deactivated || e.fingerprint != args[1].([32]byte) {
			status = types.ReceiptStatusFailed
			break
		}
		e.document, e.fingerprint, e.updated = args[0].(string), args[2].([32]byte), f.block
		e.version++
	case "deactivateWeId":
		if e == nil || e.deactivated {
			status = types.ReceiptStatusFailed
			break
		}
		e.deactivated, e.updated = true, f.block
		e.version++
	}

	f.receipts[tx.Hash()] = &types.Receipt{
		Status:           status,
		TxHash:           tx.Hash(),
		BlockNumber:      big.NewInt(f.block),
		TransactionIndex: 0,
	}
	return tx, nil
}

func (f *fakeChain) receipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls[hash]++
	if f.neverMine || f.polls[hash] <= f.pendingPolls {
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

type identity struct {
	weId    string
	address string
	keys    *codec.KeyPair
}

func newIdentity(t *testing.T, c *codec.Codec) identity {
	t.Helper()
	kp, err := c.GenerateKeyPair()
	require.NoError(t, err)
	address, err := codec.AddressFromPrivateKey(kp.PrivateKey)
	require.NoError(t, err)
	return identity{weId: c.WeIdFromAddress(address), address: address, keys: kp}
}

func newTestContract(t *testing.T) (*Contract, *fakeChain, *codec.Codec) {
	t.Helper()
	cfg := &Config{
		RPCURL:          "http://localhost:8545",
		ContractAddress: testContract,
		ChainID:         testChainID,
		ReceiptTimeout:  2 * time.Second,
		PollInterval:    time.Millisecond,
	}
	require.NoError(t, cfg.Validate())
	cfg.Standardize()

	c := codec.New(testChainID)
	f := newFakeChain(t)
	return newContract(f, cfg, c), f, c
}

func TestLoadABI(t *testing.T) {
	contractABI, err := loadABI()
	require.NoError(t, err)

	for _, method := range []string{"createWeId", "updateWeId", "deactivateWeId", "isIdentityExist", "getDocument", "getWeIdList", "getWeIdCount"} {
		_, ok := contractABI.Methods[method]
		assert.True(t, ok, method)
	}

	t.Run("getDocument outputs decode into a record", func(t *testing.T) {
		var fp [32]byte
		copy(fp[:], common.FromHex("0x01"))
		packed, err := contractABI.Methods["getDocument"].Outputs.Pack("{}", fp, big.NewInt(1), big.NewInt(2), true, big.NewInt(3))
		require.NoError(t, err)

		out, err := contractABI.Unpack("getDocument", packed)
		require.NoError(t, err)
		rec, err := decodeRecord(out)
		require.NoError(t, err)
		assert.Equal(t, "{}", rec.Document)
		assert.True(t, rec.Deactivated)
		assert.Equal(t, int64(3), rec.Version.Int64())
	})
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{RPCURL: "http://localhost:8545", ContractAddress: testContract, ChainID: 1}, false},
		{"missing rpc", Config{ContractAddress: testContract, ChainID: 1}, true},
		{"bad address", Config{RPCURL: "http://localhost:8545", ContractAddress: "0x12", ChainID: 1}, true},
		{"zero chain", Config{RPCURL: "http://localhost:8545", ContractAddress: testContract}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cfg := Config{}
	cfg.Standardize()
	assert.Equal(t, uint64(DefaultGasLimit), cfg.GasLimit)
	assert.Zero(t, cfg.GasPrice.Sign())
	assert.Equal(t, DefaultReceiptTimeout, cfg.ReceiptTimeout)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
}

func TestContractLifecycle(t *testing.T) {
	ctx := context.Background()
	e, f, c := newTestContract(t)
	f.pendingPolls = 2
	id := newIdentity(t, c)

	info, err := e.CreateWeId(ctx, id.address, id.keys.PublicKey, id.keys.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.BlockNumber)
	assert.True(t, strings.HasPrefix(info.TransactionHash, "0x"))

	exists, err := e.IsWeIdExist(ctx, id.weId)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = e.CreateWeId(ctx, id.address, id.keys.PublicKey, id.keys.PrivateKey)
	assert.Equal(t, errcode.WeIdAlreadyExist, errcode.FromError(err))

	doc, err := e.GetWeIdDocument(ctx, id.weId)
	require.NoError(t, err)
	assert.Equal(t, id.weId, doc.Id)
	prev, err := doc.Fingerprint()
	require.NoError(t, err)

	endpoint := gofakeit.URL()
	doc.Service = append(doc.Service, did.ServiceProperty{Id: did.DefaultServiceID(id.weId, endpoint), Type: "hub", ServiceEndpoint: endpoint})
	_, err = e.UpdateWeId(ctx, doc, id.address, id.keys.PrivateKey, prev)
	require.NoError(t, err)

	_, err = e.UpdateWeId(ctx, doc, id.address, id.keys.PrivateKey, prev)
	assert.Equal(t, errcode.WeIdDocumentConflict, errcode.FromError(err))

	meta, err := e.GetWeIdDocumentMetadata(ctx, id.weId)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.VersionId)

	_, err = e.Deactivate(ctx, id.address, id.keys.PrivateKey)
	require.NoError(t, err)
	deactivated, err := e.IsDeactivated(ctx, id.weId)
	require.NoError(t, err)
	assert.True(t, deactivated)

	count, err := e.GetWeIdCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	list, err := e.GetWeIdList(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{id.weId}, list)
}

func TestContractErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown weid", func(t *testing.T) {
		e, _, c := newTestContract(t)
		_, err := e.GetWeIdDocument(ctx, newIdentity(t, c).weId)
		assert.Equal(t, errcode.WeIdDoesNotExist, errcode.FromError(err))

		_, err = e.IsWeIdExist(ctx, "did:weid:704:zzz")
		assert.Equal(t, errcode.WeIdInvalid, errcode.FromError(err))
	})

	t.Run("illegal private key", func(t *testing.T) {
		e, _, c := newTestContract(t)
		id := newIdentity(t, c)
		_, err := e.CreateWeId(ctx, id.address, id.keys.PublicKey, "0")
		assert.Equal(t, errcode.WeIdPrivateKeyIllegal, errcode.FromError(err))
	})

	t.Run("receipt timeout", func(t *testing.T) {
		e, f, c := newTestContract(t)
		e.cfg.ReceiptTimeout = 20 * time.Millisecond
		f.neverMine = true
		id := newIdentity(t, c)
		_, err := e.CreateWeId(ctx, id.address, id.keys.PublicKey, id.keys.PrivateKey)
		assert.Equal(t, errcode.TransactionTimeout, errcode.FromError(err))
	})

	t.Run("reverted transaction", func(t *testing.T) {
		e, f, c := newTestContract(t)
		id := newIdentity(t, c)
		_, err := e.CreateWeId(ctx, id.address, id.keys.PublicKey, id.keys.PrivateKey)
		require.NoError(t, err)

		doc, err := e.GetWeIdDocument(ctx, id.weId)
		require.NoError(t, err)
		prev, err := doc.Fingerprint()
		require.NoError(t, err)

		// Another writer lands between the read and the contract check.
		f.entries[common.HexToAddress(id.address)].fingerprint = [32]byte{1}
		fake := &racingChain{fakeChain: f, stale: prev}
		e.chain = fake

		_, err = e.UpdateWeId(ctx, doc, id.address, id.keys.PrivateKey, prev)
		assert.Equal(t, errcode.TransactionExecuteError, errcode.FromError(err))
	})

	t.Run("invalid range", func(t *testing.T) {
		e, _, _ := newTestContract(t)
		_, err := e.GetWeIdList(ctx, 3, 1)
		assert.Error(t, err)
	})
}

// racingChain reports a stale fingerprint on reads so the engine's own
// check passes and the contract-side check rejects the write.
type racingChain struct {
	*fakeChain
	stale string
}

func (r *racingChain) call(ctx context.Context, method string, args ...any) ([]any, error) {
	out, err := r.fakeChain.call(ctx, method, args...)
	if err == nil && method == "getDocument" {
		fp, _ := hexToBytes32(r.stale)
		out[1] = fp
	}
	return out, err
}

func TestHexToBytes32(t *testing.T) {
	_, err := hexToBytes32("0x1234")
	assert.Error(t, err)
	_, err = hexToBytes32("zz")
	assert.Error(t, err)

	b, err := hexToBytes32(common.Hash{31: 1}.Hex())
	require.NoError(t, err)
	assert.Equal(t, byte(1), b[31])
}
