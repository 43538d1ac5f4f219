// Package validation holds the pure input checks run before any ledger call.
package validation

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
)

const privateKeyBits = 256

// IsWeIdValid reports whether weId is a structurally valid WeIdentity DID:
// did:weid:<chainId>:0x<40 hex> or the legacy did:weid:0x<40 hex>.
func IsWeIdValid(weId string) bool {
	if !strings.HasPrefix(weId, codec.WeIdPrefix) {
		return false
	}

	parts := strings.Split(strings.TrimPrefix(weId, codec.WeIdPrefix), ":")
	switch len(parts) {
	case 1:
	case 2:
		if !codec.IsDecimal(parts[0]) {
			return false
		}
	default:
		return false
	}

	address := parts[len(parts)-1]
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

// WeIdMapper maps a DID to its address and back for one chain.
type WeIdMapper interface {
	AddressFromWeId(weId string) (string, error)
	WeIdFromAddress(address string) string
}

// IsWeIdCanonical reports whether weId is valid and is exactly the DID m
// produces for its address. Legacy forms, foreign chain ids and mixed-case
// addresses all name some address but are not its DID.
func IsWeIdCanonical(m WeIdMapper, weId string) bool {
	if !IsWeIdValid(weId) {
		return false
	}
	address, err := m.AddressFromWeId(weId)
	return err == nil && m.WeIdFromAddress(address) == weId
}

// IsPrivateKeyValid reports whether key holds a usable decimal private key.
func IsPrivateKeyValid(key *codec.PrivateKey) bool {
	if key == nil || strings.TrimSpace(key.PrivateKey) == "" {
		return false
	}
	return codec.IsDecimal(key.PrivateKey) && IsPrivateKeyLengthValid(key.PrivateKey)
}

// IsPrivateKeyLengthValid reports whether the decimal private key is a
// non-zero scalar below the secp256k1 group order.
func IsPrivateKeyLengthValid(privateKey string) bool {
	n, ok := new(big.Int).SetString(privateKey, 10)
	if !ok || n.Sign() <= 0 || n.BitLen() > privateKeyBits {
		return false
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(n.FillBytes(make([]byte, privateKeyBits/8))); overflow {
		return false
	}
	return !scalar.IsZero()
}

// IsPublicKeyStringValid accepts base64 and decimal big integer encodings.
func IsPublicKeyStringValid(publicKey string) bool {
	return codec.IsBase64(publicKey) || codec.IsDecimal(publicKey)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func argsValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterValidation("weid-pubkey", func(fl validator.FieldLevel) bool {
			return IsPublicKeyStringValid(fl.Field().String())
		})
		v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// ArgumentError names the first argument field that failed validation.
type ArgumentError struct {
	error
	Field string
	Tag   string
}

func check(args any) error {
	if err := argsValidator().Struct(args); err != nil {
		var validateErrors validator.ValidationErrors
		if errors.As(err, &validateErrors) && len(validateErrors) > 0 {
			first := validateErrors[0]
			return ArgumentError{
				error: err,
				Field: first.Field(),
				Tag:   first.Tag(),
			}
		}
		return err
	}
	return nil
}

// VerifyAuthenticationArgs checks the arguments of an authentication add.
func VerifyAuthenticationArgs(args *protocol.AuthenticationArgs) error {
	if args == nil {
		return errors.New("authentication args are required")
	}
	return check(args)
}

type revokeAuthenticationArgs struct {
	Id        string `validate:"required_without=PublicKey"`
	PublicKey string `validate:"omitempty,weid-pubkey"`
}

// VerifyRevokeAuthenticationArgs checks the arguments of an authentication
// revoke: a well-formed public key, an id, or both.
func VerifyRevokeAuthenticationArgs(args *protocol.AuthenticationArgs) error {
	if args == nil {
		return errors.New("authentication args are required")
	}
	return check(&revokeAuthenticationArgs{Id: args.Id, PublicKey: args.PublicKey})
}

// VerifyServiceArgs checks the arguments of a service add.
func VerifyServiceArgs(args *protocol.ServiceArgs) error {
	if args == nil {
		return errors.New("service args are required")
	}
	if err := check(args); err != nil {
		return fmt.Errorf("invalid service args: %w", err)
	}
	return nil
}
