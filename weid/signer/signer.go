package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
)

// SignerProvider signs ledger transactions on behalf of a DID.
type SignerProvider interface {
	Sign(payload []byte) ([]byte, error)
	GetAddress() string
}

// DefaultProvider signs with an in-process secp256k1 private key.
type DefaultProvider struct {
	priv *ecdsa.PrivateKey
}

// NewDefaultProvider creates a signer provider from a WeIdentity private key.
//
// privateKey is the private key as a decimal big integer.
// Returns the signer provider or an error if the private key is invalid.
func NewDefaultProvider(privateKey string) (SignerProvider, error) {
	priv, err := codec.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load signer key: %w", err)
	}
	return &DefaultProvider{priv: priv}, nil
}

// Sign signs a 32-byte hash.
func (s *DefaultProvider) Sign(hashPayload []byte) ([]byte, error) {
	signature, err := crypto.Sign(hashPayload, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != crypto.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	return signature, nil
}

// GetAddress returns the lowercase address of the signer.
func (s *DefaultProvider) GetAddress() string {
	return strings.ToLower(crypto.PubkeyToAddress(s.priv.PublicKey).Hex())
}
