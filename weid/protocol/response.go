// Package protocol holds the request arguments and the result envelope
// shared by every WeIdentity DID operation.
package protocol

import (
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
)

// TransactionInfo describes the ledger transaction that carried a write.
type TransactionInfo struct {
	// BlockNumber is the block the transaction was included in.
	BlockNumber uint64 `json:"blockNumber"`
	// TransactionHash is the hex hash of the transaction.
	TransactionHash string `json:"transactionHash"`
	// TransactionIndex is the position of the transaction in its block.
	TransactionIndex uint `json:"transactionIndex"`
}

// Response is the uniform envelope returned to callers. Failures are always
// represented in ErrorCode/ErrorMessage; Result then holds the zero value
// of T unless the operation documents otherwise.
type Response[T any] struct {
	Result          T                `json:"result"`
	ErrorCode       int              `json:"errorCode"`
	ErrorMessage    string           `json:"errorMessage"`
	TransactionInfo *TransactionInfo `json:"transactionInfo,omitempty"`
}

// NewResponse builds a response for result and code.
func NewResponse[T any](result T, code errcode.Code) Response[T] {
	return Response[T]{
		Result:       result,
		ErrorCode:    int(code),
		ErrorMessage: code.Message(),
	}
}

// WithTransaction attaches transaction metadata to the response.
func (r Response[T]) WithTransaction(info *TransactionInfo) Response[T] {
	r.TransactionInfo = info
	return r
}

// Code returns the typed error code of the response.
func (r Response[T]) Code() errcode.Code {
	return errcode.Code(r.ErrorCode)
}

// IsSuccess reports whether the response carries the success code.
func (r Response[T]) IsSuccess() bool {
	return r.Code().IsSuccess()
}
