// Package errcode defines the numeric result codes returned by the WeIdentity
// DID service and groups them into a small taxonomy of failure kinds.
//
// A Code is also an error, so packages below the service boundary (codecs,
// ledger engines) can return it directly and have it survive wrapping:
//
//	return nil, fmt.Errorf("update weid: %w", errcode.WeIdPrivateKeyIllegal)
//
// The service recovers it with errors.As and reports it unchanged.
package errcode

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy class of a Code.
type Kind uint8

// Kind constants.
const (
	KindSuccess Kind = iota
	KindInputInvalid
	KindAlreadyExists
	KindDoesNotExist
	KindDeactivated
	KindDuplicateAuthenticationID
	KindDuplicateAuthenticationKey
	KindDuplicateServiceID
	KindAuthenticationMissing
	KindPrivateKeyIllegal
	KindKeypairMismatch
	KindConflict
	KindUnderlyingLedgerFailure
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindInputInvalid:
		return "InputInvalid"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindDoesNotExist:
		return "DoesNotExist"
	case KindDeactivated:
		return "Deactivated"
	case KindDuplicateAuthenticationID:
		return "DuplicateAuthenticationId"
	case KindDuplicateAuthenticationKey:
		return "DuplicateAuthenticationKey"
	case KindDuplicateServiceID:
		return "DuplicateServiceId"
	case KindAuthenticationMissing:
		return "AuthenticationMethodNotExists"
	case KindPrivateKeyIllegal:
		return "PrivateKeyIllegal"
	case KindKeypairMismatch:
		return "KeypairMismatch"
	case KindConflict:
		return "Conflict"
	default:
		return "UnderlyingLedgerFailure"
	}
}

// Code is a numeric result code.
type Code int

// Result codes.
const (
	Success Code = 0

	WeIdInvalid                          Code = 100101
	WeIdPublicKeyInvalid                 Code = 100102
	WeIdPrivateKeyInvalid                Code = 100103
	WeIdDoesNotExist                     Code = 100104
	WeIdAlreadyExist                     Code = 100105
	WeIdPublicKeyAndPrivateKeyNotMatched Code = 100106
	WeIdKeyPairCreateFailed              Code = 100107
	WeIdHasBeenDeactivated               Code = 100108
	WeIdPublicKeyNotExist                Code = 100109
	WeIdPrivateKeyIllegal                Code = 100110
	WeIdPrivateKeyDoesNotMatch           Code = 100111
	WeIdDocumentConflict                 Code = 100112

	AuthenticationPublicKeyMultibaseExists Code = 100201
	AuthenticationMethodIDExists           Code = 100202
	AuthenticationMethodNotExists          Code = 100203
	ServiceMethodIDExists                  Code = 100204

	TransactionTimeout      Code = 160001
	TransactionExecuteError Code = 160002
	UnknownError            Code = 160003
	IllegalInput            Code = 160004
	ContractLoadFailed      Code = 160005
)

type codeInfo struct {
	message string
	kind    Kind
}

var codes = map[Code]codeInfo{
	Success: {"success", KindSuccess},

	WeIdInvalid:                          {"the weid is invalid", KindInputInvalid},
	WeIdPublicKeyInvalid:                 {"the weid public key is invalid", KindInputInvalid},
	WeIdPrivateKeyInvalid:                {"the weid private key is invalid", KindInputInvalid},
	WeIdDoesNotExist:                     {"the weid does not exist", KindDoesNotExist},
	WeIdAlreadyExist:                     {"the weid already exists", KindAlreadyExists},
	WeIdPublicKeyAndPrivateKeyNotMatched: {"the public key and private key are not matched", KindKeypairMismatch},
	WeIdKeyPairCreateFailed:              {"create key pair failed", KindUnderlyingLedgerFailure},
	WeIdHasBeenDeactivated:               {"the weid has been deactivated", KindDeactivated},
	WeIdPublicKeyNotExist:                {"no weid is registered for the public key", KindDoesNotExist},
	WeIdPrivateKeyIllegal:                {"the private key is illegal for signing", KindPrivateKeyIllegal},
	WeIdPrivateKeyDoesNotMatch:           {"the private key does not control the weid", KindKeypairMismatch},
	WeIdDocumentConflict:                 {"the weid document was modified concurrently", KindConflict},

	AuthenticationPublicKeyMultibaseExists: {"an authentication with the same public key exists", KindDuplicateAuthenticationKey},
	AuthenticationMethodIDExists:           {"an authentication with the same id exists", KindDuplicateAuthenticationID},
	AuthenticationMethodNotExists:          {"the authentication does not exist", KindAuthenticationMissing},
	ServiceMethodIDExists:                  {"a service with the same id exists", KindDuplicateServiceID},

	TransactionTimeout:      {"the transaction timed out", KindUnderlyingLedgerFailure},
	TransactionExecuteError: {"the transaction failed on chain", KindUnderlyingLedgerFailure},
	UnknownError:            {"unknown error", KindUnderlyingLedgerFailure},
	IllegalInput:            {"illegal input", KindInputInvalid},
	ContractLoadFailed:      {"load contract failed", KindUnderlyingLedgerFailure},
}

// Message returns the human readable message for the code.
func (c Code) Message() string {
	if info, ok := codes[c]; ok {
		return info.message
	}
	return fmt.Sprintf("unknown error code %d", int(c))
}

// Kind returns the taxonomy class of the code. Unregistered codes are
// reported as underlying ledger failures.
func (c Code) Kind() Kind {
	if info, ok := codes[c]; ok {
		return info.kind
	}
	return KindUnderlyingLedgerFailure
}

// Error implements the error interface.
func (c Code) Error() string {
	return fmt.Sprintf("%d: %s", int(c), c.Message())
}

// IsSuccess reports whether c is Success.
func (c Code) IsSuccess() bool { return c == Success }

// FromError extracts the Code carried by err. A nil error is Success; an
// error that carries no Code is UnknownError.
func FromError(err error) Code {
	if err == nil {
		return Success
	}
	var code Code
	if errors.As(err, &code) {
		return code
	}
	return UnknownError
}
