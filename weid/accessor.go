package weid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
	"github.com/pilacorp/go-weid-sdk/weid/validation"
)

// ProtocolVersion is the marker injected as the first field of document JSON.
const ProtocolVersion = `"@context": "https://github.com/WeBankFinTech/WeIdentity/blob/master/context/v1",`

// Accessor is the read path over a ledger engine. Every query goes to the
// engine; nothing is cached.
//
// A DID is accepted only in the exact form the codec produces for its
// address, so each document is reachable under one DID.
type Accessor struct {
	engine engine.Engine
	codec  Codec
	logger *slog.Logger
}

// NewAccessor creates an accessor over e for DIDs of c.
func NewAccessor(e engine.Engine, c Codec, logger *slog.Logger) *Accessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accessor{engine: e, codec: c, logger: logger}
}

// GetWeIdDocument returns the current document of weId.
func (a *Accessor) GetWeIdDocument(ctx context.Context, weId string) protocol.Response[*did.Document] {
	doc, err := a.document(ctx, weId)
	return respond(ctx, a.logger, "getWeIdDocument", doc, nil, err)
}

// GetWeIdDocumentMetadata returns the ledger metadata of weId.
func (a *Accessor) GetWeIdDocumentMetadata(ctx context.Context, weId string) protocol.Response[*did.DocumentMetadata] {
	meta, err := a.metadata(ctx, weId)
	return respond(ctx, a.logger, "getWeIdDocumentMetadata", meta, nil, err)
}

// GetWeIdDocumentJson returns the document of weId as indented JSON with
// ProtocolVersion as its first field.
func (a *Accessor) GetWeIdDocumentJson(ctx context.Context, weId string) protocol.Response[string] {
	doc, err := a.document(ctx, weId)
	if err != nil {
		return respond(ctx, a.logger, "getWeIdDocumentJson", "", nil, err)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return respond(ctx, a.logger, "getWeIdDocumentJson", "", nil, err)
	}

	docJSON := string(raw[:1]) + "\n  " + ProtocolVersion + string(raw[1:])
	return protocol.NewResponse(docJSON, errcode.Success)
}

// IsWeIdExist reports whether weId is registered.
func (a *Accessor) IsWeIdExist(ctx context.Context, weId string) protocol.Response[bool] {
	exists, err := a.exists(ctx, weId)
	return respond(ctx, a.logger, "isWeIdExist", exists, nil, err)
}

// IsDeactivated reports whether weId has been deactivated.
func (a *Accessor) IsDeactivated(ctx context.Context, weId string) protocol.Response[bool] {
	deactivated, err := a.deactivated(ctx, weId)
	return respond(ctx, a.logger, "isDeactivated", deactivated, nil, err)
}

func (a *Accessor) isWeIdValid(weId string) bool {
	return validation.IsWeIdCanonical(a.codec, weId)
}

func (a *Accessor) document(ctx context.Context, weId string) (*did.Document, error) {
	if !a.isWeIdValid(weId) {
		return nil, errcode.WeIdInvalid
	}
	doc, err := a.engine.GetWeIdDocument(ctx, weId)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("engine returned no document for %s: %w", weId, errcode.WeIdDoesNotExist)
	}
	return doc, nil
}

func (a *Accessor) metadata(ctx context.Context, weId string) (*did.DocumentMetadata, error) {
	if !a.isWeIdValid(weId) {
		return nil, errcode.WeIdInvalid
	}
	return a.engine.GetWeIdDocumentMetadata(ctx, weId)
}

func (a *Accessor) exists(ctx context.Context, weId string) (bool, error) {
	if !a.isWeIdValid(weId) {
		return false, errcode.WeIdInvalid
	}
	return a.engine.IsWeIdExist(ctx, weId)
}

func (a *Accessor) deactivated(ctx context.Context, weId string) (bool, error) {
	if !a.isWeIdValid(weId) {
		return false, errcode.WeIdInvalid
	}
	return a.engine.IsDeactivated(ctx, weId)
}

// respond converts the outcome of an operation into the response envelope.
func respond[T any](ctx context.Context, logger *slog.Logger, op string, result T, tx *protocol.TransactionInfo, err error) protocol.Response[T] {
	if err != nil {
		var zero T
		return protocol.NewResponse(zero, fault(ctx, logger, op, err))
	}
	return protocol.NewResponse(result, errcode.Success).WithTransaction(tx)
}

// fault maps a failure to its result code. A failure carrying an
// errcode.Code keeps that code; any other failure is logged and reported
// as errcode.UnknownError.
func fault(ctx context.Context, logger *slog.Logger, op string, err error) errcode.Code {
	var code errcode.Code
	if !errors.As(err, &code) {
		logger.ErrorContext(ctx, "unexpected ledger fault", "op", op, "error", err)
		return errcode.UnknownError
	}

	logger.WarnContext(ctx, "operation rejected",
		"op", op,
		"code", int(code),
		"kind", code.Kind().String(),
		"error", err,
	)
	return code
}
