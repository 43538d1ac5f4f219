package weid

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
)

const testChainID = int64(101)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// countingEngine counts ledger writes.
type countingEngine struct {
	*engine.Memory
	creates atomic.Int32
	updates atomic.Int32
}

func (c *countingEngine) CreateWeId(ctx context.Context, address, publicKey, privateKey string) (*protocol.TransactionInfo, error) {
	c.creates.Add(1)
	return c.Memory.CreateWeId(ctx, address, publicKey, privateKey)
}

func (c *countingEngine) UpdateWeId(ctx context.Context, doc *did.Document, address, privateKey, prev string) (*protocol.TransactionInfo, error) {
	c.updates.Add(1)
	return c.Memory.UpdateWeId(ctx, doc, address, privateKey, prev)
}

func (c *countingEngine) writes() int32 {
	return c.creates.Load() + c.updates.Load()
}

type fixture struct {
	service *Service
	engine  *countingEngine
	codec   *codec.Codec
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	c := codec.New(testChainID)
	e := &countingEngine{Memory: engine.NewMemory(c)}
	s, err := New(e, append([]Option{WithChainID(testChainID), WithLogger(discard)}, options...)...)
	require.NoError(t, err)
	return &fixture{service: s, engine: e, codec: c}
}

type account struct {
	weId string
	keys *codec.KeyPair
}

func (a account) privateKey() *codec.PrivateKey {
	return &codec.PrivateKey{PrivateKey: a.keys.PrivateKey}
}

// newAccount generates a key pair without registering it.
func (f *fixture) newAccount(t *testing.T) account {
	t.Helper()
	kp, err := f.codec.GenerateKeyPair()
	require.NoError(t, err)
	weId, err := f.codec.WeIdFromPublicKey(kp.PublicKey)
	require.NoError(t, err)
	return account{weId: weId, keys: kp}
}

// register generates and registers a DID.
func (f *fixture) register(t *testing.T) account {
	t.Helper()
	a := f.newAccount(t)
	resp := f.service.CreateWeIdWithArgs(context.Background(), &CreateWeIdArgs{
		PublicKey:      a.keys.PublicKey,
		WeIdPrivateKey: a.privateKey(),
	})
	require.True(t, resp.IsSuccess(), resp.ErrorMessage)
	return a
}

func (f *fixture) document(t *testing.T, weId string) *did.Document {
	t.Helper()
	resp := f.service.GetWeIdDocument(context.Background(), weId)
	require.True(t, resp.IsSuccess(), resp.ErrorMessage)
	return resp.Result
}

// base64Key re-encodes a decimal public key as base64 of its raw point.
func base64Key(t *testing.T, decimal string) string {
	t.Helper()
	pub, err := codec.DecodePublicKey(decimal)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(crypto.FromECDSAPub(pub)[1:])
}

// keyEncodings lists every accepted encoding of a decimal public key: the
// decimal form and base64 of the 64-byte, 65-byte and compressed layouts.
func keyEncodings(t *testing.T, decimal string) []string {
	t.Helper()
	pub, err := codec.DecodePublicKey(decimal)
	require.NoError(t, err)
	return []string{
		decimal,
		base64Key(t, decimal),
		base64.StdEncoding.EncodeToString(crypto.FromECDSAPub(pub)),
		base64.StdEncoding.EncodeToString(crypto.CompressPubkey(pub)),
	}
}

// failingCodec fails key generation.
type failingCodec struct {
	*codec.Codec
}

func (failingCodec) GenerateKeyPair() (*codec.KeyPair, error) {
	return nil, errors.New("entropy source unavailable")
}

// faultyEngine injects failures into selected engine calls.
type faultyEngine struct {
	engine.Engine
	createErr error
	existErr  error
	listErr   error
}

func (f *faultyEngine) CreateWeId(ctx context.Context, address, publicKey, privateKey string) (*protocol.TransactionInfo, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Engine.CreateWeId(ctx, address, publicKey, privateKey)
}

func (f *faultyEngine) IsWeIdExist(ctx context.Context, weId string) (bool, error) {
	if f.existErr != nil {
		return false, f.existErr
	}
	return f.Engine.IsWeIdExist(ctx, weId)
}

func (f *faultyEngine) GetWeIdList(ctx context.Context, first, last int) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Engine.GetWeIdList(ctx, first, last)
}

func (f *faultyEngine) GetWeIdCount(ctx context.Context) (int, error) {
	if f.listErr != nil {
		return 0, f.listErr
	}
	return f.Engine.GetWeIdCount(ctx)
}

// staleEngine serves a document snapshot taken before later writes.
type staleEngine struct {
	*engine.Memory
	snapshot *did.Document
}

func (s *staleEngine) GetWeIdDocument(ctx context.Context, weId string) (*did.Document, error) {
	if s.snapshot != nil {
		return s.snapshot.Clone(), nil
	}
	return s.Memory.GetWeIdDocument(ctx, weId)
}

// hollowEngine reports documents as present but returns none.
type hollowEngine struct {
	*engine.Memory
}

func (hollowEngine) GetWeIdDocument(context.Context, string) (*did.Document, error) {
	return nil, nil
}
