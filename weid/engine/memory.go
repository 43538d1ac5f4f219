package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
)

type record struct {
	doc         *did.Document
	fingerprint string
	meta        did.DocumentMetadata
}

// Memory is an in-process engine. It is safe for concurrent use.
type Memory struct {
	codec *codec.Codec
	now   func() time.Time

	mu      sync.RWMutex
	records map[string]*record
	order   []string
	block   uint64
}

// NewMemory creates an empty in-memory engine producing DIDs with c.
func NewMemory(c *codec.Codec) *Memory {
	return &Memory{
		codec:   c,
		now:     time.Now,
		records: make(map[string]*record),
	}
}

func (m *Memory) CreateWeId(ctx context.Context, address, publicKey, privateKey string) (*protocol.TransactionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := Authorize(address, privateKey); err != nil {
		return nil, err
	}
	doc, err := InitialDocument(m.codec, address, publicKey)
	if err != nil {
		return nil, err
	}
	fingerprint, err := doc.Fingerprint()
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(address)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[key]; ok {
		return nil, fmt.Errorf("address %s: %w", key, errcode.WeIdAlreadyExist)
	}

	ts := m.now().Unix()
	m.records[key] = &record{
		doc:         doc,
		fingerprint: fingerprint,
		meta:        did.DocumentMetadata{Created: ts, Updated: ts, VersionId: 1},
	}
	m.order = append(m.order, doc.Id)

	return m.nextTx(key, 1, fingerprint), nil
}

func (m *Memory) GetWeIdDocument(ctx context.Context, weId string) (*did.Document, error) {
	rec, err := m.lookup(ctx, weId)
	if err != nil {
		return nil, err
	}
	return rec.doc, nil
}

func (m *Memory) GetWeIdDocumentMetadata(ctx context.Context, weId string) (*did.DocumentMetadata, error) {
	rec, err := m.lookup(ctx, weId)
	if err != nil {
		return nil, err
	}
	return &rec.meta, nil
}

func (m *Memory) IsWeIdExist(ctx context.Context, weId string) (bool, error) {
	_, err := m.lookup(ctx, weId)
	switch errcode.FromError(err) {
	case errcode.Success:
		return true, nil
	case errcode.WeIdDoesNotExist:
		return false, nil
	default:
		return false, err
	}
}

func (m *Memory) IsDeactivated(ctx context.Context, weId string) (bool, error) {
	rec, err := m.lookup(ctx, weId)
	if err != nil {
		return false, err
	}
	return rec.meta.Deactivated, nil
}

func (m *Memory) UpdateWeId(ctx context.Context, doc *did.Document, address, privateKey, prevFingerprint string) (*protocol.TransactionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := Authorize(address, privateKey); err != nil {
		return nil, err
	}
	fingerprint, err := doc.Fingerprint()
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(address)

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", key, errcode.WeIdDoesNotExist)
	}
	if rec.meta.Deactivated {
		return nil, fmt.Errorf("address %s: %w", key, errcode.WeIdHasBeenDeactivated)
	}
	if err := CheckUpdate(doc, rec.doc.Id, rec.fingerprint, prevFingerprint); err != nil {
		return nil, err
	}

	rec.doc = doc.Clone()
	rec.fingerprint = fingerprint
	rec.meta.Updated = m.now().Unix()
	rec.meta.VersionId++

	return m.nextTx(key, rec.meta.VersionId, fingerprint), nil
}

func (m *Memory) GetWeIdList(ctx context.Context, first, last int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckRange(first, last); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if first >= len(m.order) {
		return []string{}, nil
	}
	last = min(last, len(m.order))
	return append([]string(nil), m.order[first:last]...), nil
}

func (m *Memory) GetWeIdCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

// Deactivate marks the DID of address as deactivated. It cannot be undone.
func (m *Memory) Deactivate(ctx context.Context, address, privateKey string) (*protocol.TransactionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := Authorize(address, privateKey); err != nil {
		return nil, err
	}

	key := strings.ToLower(address)

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", key, errcode.WeIdDoesNotExist)
	}
	if rec.meta.Deactivated {
		return nil, fmt.Errorf("address %s: %w", key, errcode.WeIdHasBeenDeactivated)
	}

	rec.meta.Deactivated = true
	rec.meta.Updated = m.now().Unix()
	rec.meta.VersionId++

	return m.nextTx(key, rec.meta.VersionId, rec.fingerprint), nil
}

// lookup returns a snapshot of the record of weId.
func (m *Memory) lookup(ctx context.Context, weId string) (*record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	address, err := m.codec.AddressFromWeId(weId)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.WeIdInvalid, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[address]
	if !ok {
		return nil, fmt.Errorf("weid %s: %w", weId, errcode.WeIdDoesNotExist)
	}
	return &record{doc: rec.doc.Clone(), fingerprint: rec.fingerprint, meta: rec.meta}, nil
}

// nextTx must be called with mu held.
func (m *Memory) nextTx(address string, version int, fingerprint string) *protocol.TransactionInfo {
	m.block++
	return &protocol.TransactionInfo{
		BlockNumber:     m.block,
		TransactionHash: TxHash(address, version, fingerprint),
	}
}
