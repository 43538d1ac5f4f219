// Package didcontract is a ledger engine backed by the WeIdentity registry
// smart contract on an EVM chain.
//
// This package handles:
//   - Signing and submitting registry transactions with the DID's own key
//   - Waiting for receipts and reporting their block metadata
//   - Reading documents, metadata and the DID index through contract calls
//
// Documents are stored as canonical JSON next to their Keccak-256
// fingerprint; the contract rejects an update whose previous fingerprint
// does not match the stored one.
package didcontract

import (
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
	"github.com/pilacorp/go-weid-sdk/weid/signer"
)

//go:embed weid_registry_abi.json
var smcABIJSON []byte

var (
	parsedABI    abi.ABI
	parseABIOnce sync.Once
	errParseABI  error
)

// loadABI loads and parses the registry contract ABI exactly once.
func loadABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		type hardhatArtifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		var artifact hardhatArtifact
		if err := json.Unmarshal(smcABIJSON, &artifact); err != nil {
			errParseABI = fmt.Errorf("failed to unmarshal artifact JSON: %w", err)
			return
		}
		parsedABI, errParseABI = abi.JSON(strings.NewReader(string(artifact.ABI)))
	})

	return parsedABI, errParseABI
}

// chain is the slice of the contract binding the engine relies on.
type chain interface {
	call(ctx context.Context, method string, args ...any) ([]any, error)
	transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error)
	receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type boundChain struct {
	contract *bind.BoundContract
	client   *ethclient.Client
}

func (b *boundChain) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("contract call %s failed: %w", method, err)
	}
	return out, nil
}

func (b *boundChain) transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	return b.contract.Transact(opts, method, args...)
}

func (b *boundChain) receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return b.client.TransactionReceipt(ctx, hash)
}

// Contract is a ledger engine over the WeIdentity registry contract.
type Contract struct {
	chain chain
	cfg   *Config
	codec *codec.Codec
}

// NewContract dials the RPC endpoint and binds the registry contract.
//
// RPC traffic goes through an OpenTelemetry instrumented HTTP transport.
// Returns errcode.ContractLoadFailed if the ABI cannot be loaded.
func NewContract(ctx context.Context, cfg *Config, c *codec.Codec) (*Contract, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Standardize()

	contractABI, err := loadABI()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.ContractLoadFailed, err)
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	rpcClient, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to init RPC client: %w", err)
	}
	client := ethclient.NewClient(rpcClient)

	contract := bind.NewBoundContract(common.HexToAddress(cfg.ContractAddress), contractABI, client, client, client)

	return newContract(&boundChain{contract: contract, client: client}, cfg, c), nil
}

func newContract(ch chain, cfg *Config, c *codec.Codec) *Contract {
	return &Contract{chain: ch, cfg: cfg, codec: c}
}

func (e *Contract) CreateWeId(ctx context.Context, address, publicKey, privateKey string) (*protocol.TransactionInfo, error) {
	provider, err := engine.Authorize(address, privateKey)
	if err != nil {
		return nil, err
	}
	doc, err := engine.InitialDocument(e.codec, address, publicKey)
	if err != nil {
		return nil, err
	}

	exists, err := e.exists(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("address %s: %w", address, errcode.WeIdAlreadyExist)
	}

	raw, fingerprint, err := encode(doc)
	if err != nil {
		return nil, err
	}

	return e.submit(ctx, provider, "createWeId", string(raw), fingerprint)
}

func (e *Contract) GetWeIdDocument(ctx context.Context, weId string) (*did.Document, error) {
	rec, err := e.record(ctx, weId)
	if err != nil {
		return nil, err
	}
	doc, err := did.ParseDocument([]byte(rec.Document))
	if err != nil {
		return nil, fmt.Errorf("registry document of %s is malformed: %w", weId, err)
	}
	return doc, nil
}

func (e *Contract) GetWeIdDocumentMetadata(ctx context.Context, weId string) (*did.DocumentMetadata, error) {
	rec, err := e.record(ctx, weId)
	if err != nil {
		return nil, err
	}
	return &did.DocumentMetadata{
		Created:     rec.Created.Int64(),
		Updated:     rec.Updated.Int64(),
		Deactivated: rec.Deactivated,
		VersionId:   int(rec.Version.Int64()),
	}, nil
}

func (e *Contract) IsWeIdExist(ctx context.Context, weId string) (bool, error) {
	address, err := e.address(weId)
	if err != nil {
		return false, err
	}
	return e.exists(ctx, address)
}

func (e *Contract) IsDeactivated(ctx context.Context, weId string) (bool, error) {
	rec, err := e.record(ctx, weId)
	if err != nil {
		return false, err
	}
	return rec.Deactivated, nil
}

func (e *Contract) UpdateWeId(ctx context.Context, doc *did.Document, address, privateKey, prevFingerprint string) (*protocol.TransactionInfo, error) {
	provider, err := engine.Authorize(address, privateKey)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required: %w", errcode.IllegalInput)
	}

	current, err := e.recordAt(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	if current.Deactivated {
		return nil, fmt.Errorf("address %s: %w", address, errcode.WeIdHasBeenDeactivated)
	}
	stored := common.Hash(current.Fingerprint).Hex()
	if err := engine.CheckUpdate(doc, e.codec.WeIdFromAddress(address), stored, prevFingerprint); err != nil {
		return nil, err
	}

	prev, err := hexToBytes32(prevFingerprint)
	if err != nil {
		return nil, fmt.Errorf("invalid previous fingerprint: %w", err)
	}
	raw, fingerprint, err := encode(doc)
	if err != nil {
		return nil, err
	}

	return e.submit(ctx, provider, "updateWeId", string(raw), prev, fingerprint)
}

func (e *Contract) GetWeIdList(ctx context.Context, first, last int) ([]string, error) {
	if err := engine.CheckRange(first, last); err != nil {
		return nil, err
	}
	out, err := e.chain.call(ctx, "getWeIdList", big.NewInt(int64(first)), big.NewInt(int64(last)))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("contract returned no data")
	}
	addresses, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected output type: %T", out[0])
	}

	weIds := make([]string, 0, len(addresses))
	for _, a := range addresses {
		weIds = append(weIds, e.codec.WeIdFromAddress(a.Hex()))
	}
	return weIds, nil
}

func (e *Contract) GetWeIdCount(ctx context.Context) (int, error) {
	out, err := e.chain.call(ctx, "getWeIdCount")
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, errors.New("contract returned no data")
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected output type: %T", out[0])
	}
	return int(count.Int64()), nil
}

// Deactivate submits the one-way deactivation of the DID of address.
func (e *Contract) Deactivate(ctx context.Context, address, privateKey string) (*protocol.TransactionInfo, error) {
	provider, err := engine.Authorize(address, privateKey)
	if err != nil {
		return nil, err
	}
	current, err := e.recordAt(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	if current.Deactivated {
		return nil, fmt.Errorf("address %s: %w", address, errcode.WeIdHasBeenDeactivated)
	}
	return e.submit(ctx, provider, "deactivateWeId")
}

func (e *Contract) address(weId string) (common.Address, error) {
	address, err := e.codec.AddressFromWeId(weId)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", errcode.WeIdInvalid, err)
	}
	return common.HexToAddress(address), nil
}

func (e *Contract) exists(ctx context.Context, address common.Address) (bool, error) {
	out, err := e.chain.call(ctx, "isIdentityExist", address)
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, errors.New("contract returned no data")
	}
	exists, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected output type: %T", out[0])
	}
	return exists, nil
}

func (e *Contract) record(ctx context.Context, weId string) (*registryRecord, error) {
	address, err := e.address(weId)
	if err != nil {
		return nil, err
	}
	return e.recordAt(ctx, address)
}

func (e *Contract) recordAt(ctx context.Context, address common.Address) (*registryRecord, error) {
	out, err := e.chain.call(ctx, "getDocument", address)
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(out)
	if err != nil {
		return nil, err
	}
	if rec.Document == "" {
		return nil, fmt.Errorf("address %s: %w", strings.ToLower(address.Hex()), errcode.WeIdDoesNotExist)
	}
	return rec, nil
}

// submit sends a registry transaction and waits for it to be mined.
func (e *Contract) submit(ctx context.Context, provider signer.SignerProvider, method string, args ...any) (*protocol.TransactionInfo, error) {
	auth := e.getTransactOpts(ctx, provider)

	tx, err := e.chain.transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s transaction: %w", method, err)
	}

	receipt, err := e.waitMined(ctx, tx)
	if err != nil {
		return nil, err
	}

	info := &protocol.TransactionInfo{
		TransactionHash:  receipt.TxHash.Hex(),
		TransactionIndex: receipt.TransactionIndex,
	}
	if receipt.BlockNumber != nil {
		info.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return info, nil
}

// waitMined polls for the receipt of tx with exponential backoff until it
// is found or ReceiptTimeout elapses.
func (e *Contract) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ReceiptTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.PollInterval
	policy.MaxElapsedTime = 0

	var receipt *types.Receipt
	err := backoff.Retry(func() error {
		r, err := e.chain.receipt(ctx, tx.Hash())
		if errors.Is(err, ethereum.NotFound) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		receipt = r
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transaction %s not mined: %w", tx.Hash().Hex(), errcode.TransactionTimeout)
		}
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted: %w", tx.Hash().Hex(), errcode.TransactionExecuteError)
	}
	return receipt, nil
}

// getTransactOpts sets up EIP-155 signing through provider.
func (e *Contract) getTransactOpts(ctx context.Context, provider signer.SignerProvider) *bind.TransactOpts {
	fromAddress := common.HexToAddress(provider.GetAddress())
	signerFn := func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		eip155Signer := types.NewEIP155Signer(big.NewInt(e.cfg.ChainID))
		h := eip155Signer.Hash(tx)
		sig, err := provider.Sign(h.Bytes())
		if err != nil {
			return nil, err
		}
		return tx.WithSignature(eip155Signer, sig)
	}

	return &bind.TransactOpts{
		From:     fromAddress,
		Value:    big.NewInt(0),
		GasLimit: e.cfg.GasLimit,
		GasPrice: e.cfg.GasPrice,
		Context:  ctx,
		Signer:   signerFn,
	}
}

func decodeRecord(out []any) (*registryRecord, error) {
	if len(out) != 6 {
		return nil, fmt.Errorf("getDocument returned %d values, want 6", len(out))
	}
	rec := &registryRecord{}
	var ok bool
	if rec.Document, ok = out[0].(string); !ok {
		return nil, fmt.Errorf("unexpected document type: %T", out[0])
	}
	if rec.Fingerprint, ok = out[1].([32]byte); !ok {
		return nil, fmt.Errorf("unexpected fingerprint type: %T", out[1])
	}
	if rec.Created, ok = out[2].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected created type: %T", out[2])
	}
	if rec.Updated, ok = out[3].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected updated type: %T", out[3])
	}
	if rec.Deactivated, ok = out[4].(bool); !ok {
		return nil, fmt.Errorf("unexpected deactivated type: %T", out[4])
	}
	if rec.Version, ok = out[5].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected version type: %T", out[5])
	}
	return rec, nil
}

func encode(doc *did.Document) ([]byte, [32]byte, error) {
	raw, err := doc.Canonical()
	if err != nil {
		return nil, [32]byte{}, err
	}
	fingerprint, err := doc.Fingerprint()
	if err != nil {
		return nil, [32]byte{}, err
	}
	fp, err := hexToBytes32(fingerprint)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return raw, fp, nil
}

// hexToBytes32 decodes a hex string into a 32-byte array.
//
// The input can include or omit the "0x" prefix.
// Returns an error if the hex string is invalid or not exactly 32 bytes.
func hexToBytes32(s string) ([32]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, err
	}
	if len(b) != 32 {
		return [32]byte{}, fmt.Errorf("length must be 32 bytes, got %d", len(b))
	}
	var out [32]byte
	copy(out[:], b)
	return out, nil
}
