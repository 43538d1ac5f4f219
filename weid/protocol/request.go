package protocol

import (
	"github.com/pilacorp/go-weid-sdk/weid/codec"
)

// CreateWeIdArgs registers a DID for a caller-held key pair.
type CreateWeIdArgs struct {
	// PublicKey is the public key in decimal or base64 form.
	PublicKey string `json:"publicKey"`
	// WeIdPrivateKey is the private half of PublicKey. It is only used to
	// sign the creation transaction.
	WeIdPrivateKey *codec.PrivateKey `json:"weIdPrivateKey"`
}

// AuthenticationArgs describes an authentication entry to add or revoke.
//
// On add, PublicKey is required; Id and Controller default to values
// derived from the target DID. Controller is checked against the ledger
// once the target is known to be active. On revoke, at least one of
// PublicKey and Id must be given.
type AuthenticationArgs struct {
	Id         string `json:"id" validate:"omitempty,max=512"`
	Controller string `json:"controller"`
	PublicKey  string `json:"publicKey" validate:"required,weid-pubkey"`
}

// ServiceArgs describes a service endpoint to publish.
type ServiceArgs struct {
	Id              string `json:"id" validate:"omitempty,max=512"`
	Type            string `json:"type" validate:"required,notblank"`
	ServiceEndpoint string `json:"serviceEndpoint" validate:"required,notblank"`
}
