// Package codec converts between WeIdentity DIDs, on-chain addresses and
// secp256k1 key encodings.
//
// Keys travel as strings in the WeIdentity conventions:
//   - private keys are decimal big integers
//   - public keys are either decimal big integers of the 64-byte uncompressed
//     point (X || Y) or base64 of the raw point bytes
//
// DIDs have the form did:weid:<chainId>:<address>.
package codec

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/multiformats/go-multibase"
)

// WeIdPrefix is the scheme and method prefix of every WeIdentity DID.
const WeIdPrefix = "did:weid:"

const (
	privateKeySize = 32
	publicKeySize  = 64
)

var (
	errEmptyKey        = errors.New("key is empty")
	errUnsupportedKey  = errors.New("key is neither decimal nor base64")
	errPrivateKeyRange = errors.New("private key is out of range")
)

// PrivateKey wraps a decimal private key string.
type PrivateKey struct {
	PrivateKey string `json:"privateKey"`
}

// PublicKey wraps a public key string (decimal or base64).
type PublicKey struct {
	PublicKey string `json:"publicKey"`
}

// KeyPair is a freshly generated secp256k1 key pair in WeIdentity encoding.
type KeyPair struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
}

// Codec maps between DIDs and addresses for one chain.
type Codec struct {
	chainID int64
}

// New creates a codec producing DIDs for chainID.
func New(chainID int64) *Codec {
	return &Codec{chainID: chainID}
}

// ChainID returns the chain the codec produces DIDs for.
func (c *Codec) ChainID() int64 {
	return c.chainID
}

// WeIdFromAddress builds the DID for an on-chain address.
func (c *Codec) WeIdFromAddress(address string) string {
	return fmt.Sprintf("%s%d:%s", WeIdPrefix, c.chainID, strings.ToLower(address))
}

// AddressFromWeId returns the lowercase 0x-prefixed address of a DID.
func (c *Codec) AddressFromWeId(weId string) (string, error) {
	if !strings.HasPrefix(weId, WeIdPrefix) {
		return "", fmt.Errorf("weid %q has no %s prefix", weId, WeIdPrefix)
	}
	parts := strings.Split(strings.TrimPrefix(weId, WeIdPrefix), ":")
	address := parts[len(parts)-1]
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return "", fmt.Errorf("weid %q carries no valid address", weId)
	}
	return strings.ToLower(address), nil
}

// WeIdFromPublicKey derives the DID controlled by publicKey.
//
// The key must decode to a point on the secp256k1 curve.
func (c *Codec) WeIdFromPublicKey(publicKey string) (string, error) {
	pub, err := DecodePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return c.WeIdFromAddress(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// GenerateKeyPair creates a new random key pair.
func (c *Codec) GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	return &KeyPair{
		PrivateKey: new(big.Int).SetBytes(crypto.FromECDSA(privateKey)).String(),
		PublicKey:  EncodePublicKey(&privateKey.PublicKey),
	}, nil
}

// IsKeyPairMatch reports whether publicKey is the public half of privateKey.
func (c *Codec) IsKeyPairMatch(privateKey, publicKey string) bool {
	privBytes, err := privateKeyBytes(privateKey)
	if err != nil {
		return false
	}
	candidate, err := DecodePublicKey(publicKey)
	if err != nil {
		return false
	}

	_, derived := btcec.PrivKeyFromBytes(privBytes)
	return hex.EncodeToString(derived.SerializeUncompressed()) ==
		hex.EncodeToString(crypto.FromECDSAPub(candidate))
}

// NormalizePublicKey re-encodes a decimal or base64 public key string as
// multibase base58btc of its 64-byte X || Y form, so every layout of one
// curve point normalises to the same value. Bytes that are not a curve
// point are accepted only in the 64-byte layout.
func (c *Codec) NormalizePublicKey(publicKey string) (string, error) {
	raw, err := publicKeyBytes(publicKey)
	if err != nil {
		return "", err
	}
	if pub, err := DecodePublicKey(publicKey); err == nil {
		raw = crypto.FromECDSAPub(pub)[1:]
	} else if len(raw) != publicKeySize {
		return "", fmt.Errorf("unsupported public key length: %d bytes", len(raw))
	}
	encoded, err := multibase.Encode(multibase.Base58BTC, raw)
	if err != nil {
		return "", fmt.Errorf("failed to multibase encode public key: %w", err)
	}
	return encoded, nil
}

// ParsePrivateKey decodes a decimal private key.
func ParsePrivateKey(privateKey string) (*ecdsa.PrivateKey, error) {
	b, err := privateKeyBytes(privateKey)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// AddressFromPrivateKey returns the lowercase address controlled by a
// decimal private key.
func AddressFromPrivateKey(privateKey string) (string, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()), nil
}

// DecodePublicKey parses a decimal or base64 public key into a curve point.
//
// Accepted byte layouts are 64 bytes (X || Y), 65 bytes (0x04 || X || Y)
// and 33 bytes (compressed).
func DecodePublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	raw, err := publicKeyBytes(publicKey)
	if err != nil {
		return nil, err
	}

	switch {
	case len(raw) == publicKeySize:
		return crypto.UnmarshalPubkey(append([]byte{0x04}, raw...))
	case len(raw) == publicKeySize+1 && raw[0] == 0x04:
		return crypto.UnmarshalPubkey(raw)
	case len(raw) == 33 && (raw[0] == 0x02 || raw[0] == 0x03):
		return crypto.DecompressPubkey(raw)
	default:
		return nil, fmt.Errorf("unsupported public key length: %d bytes", len(raw))
	}
}

// EncodePublicKey renders a public key as the decimal big integer of its
// 64-byte uncompressed form.
func EncodePublicKey(pub *ecdsa.PublicKey) string {
	return new(big.Int).SetBytes(crypto.FromECDSAPub(pub)[1:]).String()
}

// Digest is the fixed digest used for derived identifiers: hex Keccak-256.
func Digest(s string) string {
	return hex.EncodeToString(crypto.Keccak256([]byte(s)))
}

// IsDecimal reports whether s is a non-empty run of ASCII digits.
func IsDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsBase64 reports whether s is non-empty, padded standard base64.
func IsBase64(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.StdEncoding.Strict().DecodeString(s)
	return err == nil
}

func publicKeyBytes(publicKey string) ([]byte, error) {
	switch {
	case publicKey == "":
		return nil, errEmptyKey
	case IsDecimal(publicKey):
		n, ok := new(big.Int).SetString(publicKey, 10)
		if !ok {
			return nil, errUnsupportedKey
		}
		b := n.Bytes()
		if len(b) < publicKeySize {
			b = n.FillBytes(make([]byte, publicKeySize))
		}
		return b, nil
	case IsBase64(publicKey):
		return base64.StdEncoding.DecodeString(publicKey)
	default:
		return nil, errUnsupportedKey
	}
}

func privateKeyBytes(privateKey string) ([]byte, error) {
	if !IsDecimal(privateKey) {
		return nil, fmt.Errorf("private key is not decimal: %w", errUnsupportedKey)
	}
	n, ok := new(big.Int).SetString(privateKey, 10)
	if !ok || n.Sign() <= 0 || n.BitLen() > privateKeySize*8 {
		return nil, errPrivateKeyRange
	}
	return n.FillBytes(make([]byte, privateKeySize)), nil
}
