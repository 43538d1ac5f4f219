package weid

import (
	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
)

// Argument types accepted by the service.
type (
	CreateWeIdArgs     = protocol.CreateWeIdArgs
	AuthenticationArgs = protocol.AuthenticationArgs
	ServiceArgs        = protocol.ServiceArgs
)

// CreateWeIdDataResult is the result of creating a DID with a generated key
// pair. The caller must store the private key; it is not kept anywhere.
type CreateWeIdDataResult struct {
	WeId               string           `json:"weId"`
	UserWeIdPublicKey  codec.PublicKey  `json:"userWeIdPublicKey"`
	UserWeIdPrivateKey codec.PrivateKey `json:"userWeIdPrivateKey"`
}

// WeIdListResult pairs each queried public key with its DID and result code.
// Both lists are aligned with the input; a DID is "" where the code is not
// success.
type WeIdListResult struct {
	WeIdList      []string `json:"weIdList"`
	ErrorCodeList []int    `json:"errorCodeList"`
}
