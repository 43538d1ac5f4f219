// Package engine defines the ledger engine contract consumed by the WeIdentity
// DID service, plus helpers shared by its implementations.
//
// Engines report taxonomy failures as errcode.Code values, possibly wrapped:
//
//	errcode.WeIdPrivateKeyIllegal   the key cannot sign
//	errcode.WeIdDoesNotExist        no document for the address
//	errcode.WeIdAlreadyExist        create on a registered address
//	errcode.WeIdDocumentConflict    the document changed since it was read
//
// Any other error is treated by callers as an unexpected ledger fault.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
	"github.com/pilacorp/go-weid-sdk/weid/signer"
)

// Engine is a durable store of DID documents keyed by on-chain address.
type Engine interface {
	// CreateWeId registers a new DID for address, seeded with publicKey as
	// its first authentication entry. privateKey must control address.
	CreateWeId(ctx context.Context, address, publicKey, privateKey string) (*protocol.TransactionInfo, error)
	GetWeIdDocument(ctx context.Context, weId string) (*did.Document, error)
	GetWeIdDocumentMetadata(ctx context.Context, weId string) (*did.DocumentMetadata, error)
	IsWeIdExist(ctx context.Context, weId string) (bool, error)
	IsDeactivated(ctx context.Context, weId string) (bool, error)
	// UpdateWeId replaces the document of address. The write is rejected
	// with errcode.WeIdDocumentConflict unless the stored document still
	// has fingerprint prevFingerprint.
	UpdateWeId(ctx context.Context, doc *did.Document, address, privateKey, prevFingerprint string) (*protocol.TransactionInfo, error)
	// GetWeIdList returns the DIDs registered at positions [first, last).
	GetWeIdList(ctx context.Context, first, last int) ([]string, error)
	GetWeIdCount(ctx context.Context) (int, error)
}

// Deactivator is implemented by engines that expose the one-way
// deactivation of a DID.
type Deactivator interface {
	Deactivate(ctx context.Context, address, privateKey string) (*protocol.TransactionInfo, error)
}

// Authorize checks that privateKey can sign and controls address.
func Authorize(address, privateKey string) (signer.SignerProvider, error) {
	provider, err := signer.NewDefaultProvider(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.WeIdPrivateKeyIllegal, err)
	}
	if provider.GetAddress() != strings.ToLower(address) {
		return nil, fmt.Errorf("signer %s does not control %s: %w", provider.GetAddress(), address, errcode.WeIdPrivateKeyDoesNotMatch)
	}
	return provider, nil
}

// InitialDocument builds the document a new DID is created with.
func InitialDocument(c *codec.Codec, address, publicKey string) (*did.Document, error) {
	multibaseKey, err := c.NormalizePublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.WeIdPublicKeyInvalid, err)
	}
	return did.NewDocument(c.WeIdFromAddress(address), multibaseKey), nil
}

// CheckUpdate validates an update request against the stored document.
func CheckUpdate(doc *did.Document, weId, storedFingerprint, prevFingerprint string) error {
	if doc == nil {
		return fmt.Errorf("document is required: %w", errcode.IllegalInput)
	}
	if doc.Id != weId {
		return fmt.Errorf("document id %s does not match %s: %w", doc.Id, weId, errcode.IllegalInput)
	}
	if storedFingerprint != prevFingerprint {
		return fmt.Errorf("stored fingerprint %s, expected %s: %w", storedFingerprint, prevFingerprint, errcode.WeIdDocumentConflict)
	}
	return nil
}

// CheckRange validates a [first, last) list range.
func CheckRange(first, last int) error {
	if first < 0 || last < first {
		return fmt.Errorf("invalid range [%d, %d)", first, last)
	}
	return nil
}

// TxHash derives a transaction hash for engines that do not run on a chain.
func TxHash(address string, version int, fingerprint string) string {
	return crypto.Keccak256Hash(
		[]byte(strings.ToLower(address)),
		[]byte(strconv.Itoa(version)),
		[]byte(fingerprint),
	).Hex()
}
