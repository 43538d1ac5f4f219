// Package weid is the WeIdentity DID service: it validates requests, reads
// DID documents through a ledger engine and orchestrates document updates.
//
// Every operation returns a protocol.Response; no failure escapes as a
// panic or a bare error.
package weid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
	"github.com/pilacorp/go-weid-sdk/weid/validation"
)

// Service creates DIDs and mutates their documents. It holds no key material
// and no document state between calls; each mutation re-reads the document
// and writes it back guarded by the fingerprint it read.
type Service struct {
	*Accessor
	cfg Config
}

// New creates a service over the ledger engine e.
func New(e engine.Engine, options ...Option) (*Service, error) {
	if e == nil {
		return nil, errors.New("ledger engine is required")
	}

	cfg := resolveConfig(options...)
	if cfg.LookupParallelism < 1 {
		return nil, fmt.Errorf("lookup parallelism must be positive, got %d", cfg.LookupParallelism)
	}

	return &Service{
		Accessor: NewAccessor(e, cfg.Codec, cfg.Logger),
		cfg:      cfg,
	}, nil
}

// CreateWeId generates a key pair and registers its DID.
func (s *Service) CreateWeId(ctx context.Context) protocol.Response[*CreateWeIdDataResult] {
	keyPair, err := s.codec.GenerateKeyPair()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate key pair", "error", err)
		return protocol.NewResponse[*CreateWeIdDataResult](nil, errcode.WeIdKeyPairCreateFailed)
	}
	weId, err := s.codec.WeIdFromPublicKey(keyPair.PublicKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to derive weid from generated key", "error", err)
		return protocol.NewResponse[*CreateWeIdDataResult](nil, errcode.WeIdKeyPairCreateFailed)
	}

	tx, err := s.create(ctx, weId, keyPair.PublicKey, keyPair.PrivateKey)
	if err != nil {
		return respond[*CreateWeIdDataResult](ctx, s.logger, "createWeId", nil, nil, err)
	}

	result := &CreateWeIdDataResult{
		WeId:               weId,
		UserWeIdPublicKey:  codec.PublicKey{PublicKey: keyPair.PublicKey},
		UserWeIdPrivateKey: codec.PrivateKey{PrivateKey: keyPair.PrivateKey},
	}
	return respond(ctx, s.logger, "createWeId", result, tx, nil)
}

// CreateWeIdWithArgs registers the DID of a caller-held key pair and
// returns the DID.
func (s *Service) CreateWeIdWithArgs(ctx context.Context, args *CreateWeIdArgs) protocol.Response[string] {
	weId, tx, err := s.createWithArgs(ctx, args)
	if err != nil {
		return respond(ctx, s.logger, "createWeId", "", nil, err)
	}
	return respond(ctx, s.logger, "createWeId", weId, tx, nil)
}

func (s *Service) createWithArgs(ctx context.Context, args *CreateWeIdArgs) (string, *protocol.TransactionInfo, error) {
	if args == nil {
		return "", nil, errcode.IllegalInput
	}
	if !validation.IsPrivateKeyValid(args.WeIdPrivateKey) {
		return "", nil, errcode.WeIdPrivateKeyInvalid
	}
	if strings.TrimSpace(args.PublicKey) == "" {
		return "", nil, errcode.WeIdPublicKeyInvalid
	}

	privateKey := args.WeIdPrivateKey.PrivateKey
	if !s.codec.IsKeyPairMatch(privateKey, args.PublicKey) {
		return "", nil, errcode.WeIdPublicKeyAndPrivateKeyNotMatched
	}
	weId, err := s.codec.WeIdFromPublicKey(args.PublicKey)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", errcode.WeIdPublicKeyInvalid, err)
	}

	exists, err := s.exists(ctx, weId)
	if err != nil {
		return "", nil, err
	}
	if exists {
		return "", nil, fmt.Errorf("%s: %w", weId, errcode.WeIdAlreadyExist)
	}

	tx, err := s.create(ctx, weId, args.PublicKey, privateKey)
	if err != nil {
		return "", nil, err
	}
	return weId, tx, nil
}

func (s *Service) create(ctx context.Context, weId, publicKey, privateKey string) (*protocol.TransactionInfo, error) {
	address, err := s.codec.AddressFromWeId(weId)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.WeIdInvalid, err)
	}

	tx, err := s.engine.CreateWeId(ctx, address, publicKey, privateKey)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "weid created", "weId", weId, "txHash", tx.TransactionHash)
	return tx, nil
}

// SetAuthentication adds an authentication entry to the document of weId.
//
// The controller defaults to weId and must itself be an active DID. The id
// defaults to one derived from the public key. The entry is rejected if its
// public key or id is already present.
func (s *Service) SetAuthentication(ctx context.Context, weId string, args *AuthenticationArgs, privateKey *codec.PrivateKey) protocol.Response[bool] {
	tx, err := s.setAuthentication(ctx, weId, args, privateKey)
	return respond(ctx, s.logger, "setAuthentication", err == nil, tx, err)
}

func (s *Service) setAuthentication(ctx context.Context, weId string, args *AuthenticationArgs, privateKey *codec.PrivateKey) (*protocol.TransactionInfo, error) {
	if err := validation.VerifyAuthenticationArgs(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.IllegalInput, err)
	}
	if !validation.IsPrivateKeyValid(privateKey) {
		return nil, errcode.WeIdPrivateKeyInvalid
	}
	if !s.isWeIdValid(weId) {
		return nil, errcode.WeIdInvalid
	}

	if err := s.requireActive(ctx, weId); err != nil {
		return nil, err
	}
	if args.Controller != "" && args.Controller != weId {
		if err := s.requireActive(ctx, args.Controller); err != nil {
			return nil, fmt.Errorf("controller %s: %w", args.Controller, err)
		}
	}

	publicKey, err := s.codec.NormalizePublicKey(args.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.WeIdPublicKeyInvalid, err)
	}

	doc, prev, err := s.load(ctx, weId)
	if err != nil {
		return nil, err
	}

	controller := args.Controller
	if controller == "" {
		controller = doc.Id
	}
	id := args.Id
	if id == "" {
		id = did.DefaultAuthenticationID(doc.Id, publicKey)
	}
	for _, auth := range doc.Authentication {
		if auth.PublicKeyMultibase == publicKey {
			return nil, errcode.AuthenticationPublicKeyMultibaseExists
		}
		if auth.Id == id {
			return nil, errcode.AuthenticationMethodIDExists
		}
	}

	doc.Authentication = append(doc.Authentication, did.AuthenticationProperty{
		Id:                 id,
		Type:               did.AuthenticationType,
		Controller:         controller,
		PublicKeyMultibase: publicKey,
	})
	return s.update(ctx, "setAuthentication", weId, doc, privateKey.PrivateKey, prev)
}

// RevokeAuthentication removes one authentication entry from the document
// of weId: the first entry with the given public key, or else the first
// entry with the given id.
func (s *Service) RevokeAuthentication(ctx context.Context, weId string, args *AuthenticationArgs, privateKey *codec.PrivateKey) protocol.Response[bool] {
	tx, err := s.revokeAuthentication(ctx, weId, args, privateKey)
	return respond(ctx, s.logger, "revokeAuthentication", err == nil, tx, err)
}

func (s *Service) revokeAuthentication(ctx context.Context, weId string, args *AuthenticationArgs, privateKey *codec.PrivateKey) (*protocol.TransactionInfo, error) {
	if err := validation.VerifyRevokeAuthenticationArgs(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.IllegalInput, err)
	}
	if !validation.IsPrivateKeyValid(privateKey) {
		return nil, errcode.WeIdPrivateKeyInvalid
	}
	if !s.isWeIdValid(weId) {
		return nil, errcode.WeIdInvalid
	}
	if err := s.requireActive(ctx, weId); err != nil {
		return nil, err
	}

	doc, prev, err := s.load(ctx, weId)
	if err != nil {
		return nil, err
	}

	idx := -1
	if args.PublicKey != "" {
		publicKey, err := s.codec.NormalizePublicKey(args.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errcode.WeIdPublicKeyInvalid, err)
		}
		idx = doc.AuthenticationIndex(func(a did.AuthenticationProperty) bool {
			return a.PublicKeyMultibase == publicKey
		})
	}
	if idx < 0 && args.Id != "" {
		idx = doc.AuthenticationIndex(func(a did.AuthenticationProperty) bool {
			return a.Id == args.Id
		})
	}
	if idx < 0 {
		return nil, errcode.AuthenticationMethodNotExists
	}

	doc.RemoveAuthentication(idx)
	return s.update(ctx, "revokeAuthentication", weId, doc, privateKey.PrivateKey, prev)
}

// SetService publishes a service endpoint in the document of weId.
//
// Without an explicit id the entry gets the id derived from its endpoint,
// with no check against existing entries. An explicit id must be unused.
func (s *Service) SetService(ctx context.Context, weId string, args *ServiceArgs, privateKey *codec.PrivateKey) protocol.Response[bool] {
	tx, err := s.setService(ctx, weId, args, privateKey)
	return respond(ctx, s.logger, "setService", err == nil, tx, err)
}

func (s *Service) setService(ctx context.Context, weId string, args *ServiceArgs, privateKey *codec.PrivateKey) (*protocol.TransactionInfo, error) {
	if err := validation.VerifyServiceArgs(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.IllegalInput, err)
	}
	if !validation.IsPrivateKeyValid(privateKey) {
		return nil, errcode.WeIdPrivateKeyInvalid
	}
	if !s.isWeIdValid(weId) {
		return nil, errcode.WeIdInvalid
	}
	if err := s.requireActive(ctx, weId); err != nil {
		return nil, err
	}

	doc, prev, err := s.load(ctx, weId)
	if err != nil {
		return nil, err
	}

	id := args.Id
	switch {
	case id == "":
		// TODO: derived ids are not checked against existing entries, so
		// repeating an endpoint yields a duplicate service id.
		id = did.DefaultServiceID(doc.Id, args.ServiceEndpoint)
	case doc.ServiceIndex(id) >= 0:
		return nil, errcode.ServiceMethodIDExists
	}

	doc.Service = append(doc.Service, did.ServiceProperty{
		Id:              id,
		Type:            args.Type,
		ServiceEndpoint: args.ServiceEndpoint,
	})
	return s.update(ctx, "setService", weId, doc, privateKey.PrivateKey, prev)
}

// GetWeIdList returns the DIDs registered at positions [first, last).
func (s *Service) GetWeIdList(ctx context.Context, first, last int) protocol.Response[[]string] {
	weIds, err := s.engine.GetWeIdList(ctx, first, last)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get weid list", "first", first, "last", last, "error", err)
		return protocol.NewResponse[[]string](nil, errcode.UnknownError)
	}
	return protocol.NewResponse(weIds, errcode.Success)
}

// GetWeIdCount returns the number of registered DIDs.
func (s *Service) GetWeIdCount(ctx context.Context) protocol.Response[int] {
	count, err := s.engine.GetWeIdCount(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get weid count", "error", err)
		return protocol.NewResponse(0, errcode.UnknownError)
	}
	return protocol.NewResponse(count, errcode.Success)
}

// GetWeIdListByPubKeyList resolves each public key to its registered DID.
//
// The result lists are aligned with publicKeys. Lookups run concurrently,
// at most LookupParallelism at a time.
func (s *Service) GetWeIdListByPubKeyList(ctx context.Context, publicKeys []codec.PublicKey) protocol.Response[*WeIdListResult] {
	if len(publicKeys) == 0 {
		return protocol.NewResponse[*WeIdListResult](nil, errcode.IllegalInput)
	}

	result := &WeIdListResult{
		WeIdList:      make([]string, len(publicKeys)),
		ErrorCodeList: make([]int, len(publicKeys)),
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.LookupParallelism)
	for i, key := range publicKeys {
		g.Go(func() error {
			weId, code := s.lookupPublicKey(ctx, key.PublicKey)
			result.WeIdList[i] = weId
			result.ErrorCodeList[i] = int(code)
			return nil
		})
	}
	_ = g.Wait()

	return protocol.NewResponse(result, errcode.Success)
}

func (s *Service) lookupPublicKey(ctx context.Context, publicKey string) (string, errcode.Code) {
	weId, err := s.codec.WeIdFromPublicKey(publicKey)
	if err != nil {
		return "", errcode.WeIdPublicKeyInvalid
	}

	exists, err := s.exists(ctx, weId)
	if err != nil {
		return "", fault(ctx, s.logger, "getWeIdListByPubKeyList", err)
	}
	if !exists {
		return "", errcode.WeIdPublicKeyNotExist
	}
	return weId, errcode.Success
}

// requireActive fails unless weId exists and is not deactivated.
func (s *Service) requireActive(ctx context.Context, weId string) error {
	exists, err := s.exists(ctx, weId)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", weId, errcode.WeIdDoesNotExist)
	}

	deactivated, err := s.deactivated(ctx, weId)
	if err != nil {
		return err
	}
	if deactivated {
		return fmt.Errorf("%s: %w", weId, errcode.WeIdHasBeenDeactivated)
	}
	return nil
}

// load reads the document of weId and its fingerprint.
func (s *Service) load(ctx context.Context, weId string) (*did.Document, string, error) {
	doc, err := s.document(ctx, weId)
	if err != nil {
		return nil, "", err
	}
	prev, err := doc.Fingerprint()
	if err != nil {
		return nil, "", err
	}
	return doc, prev, nil
}

func (s *Service) update(ctx context.Context, op, weId string, doc *did.Document, privateKey, prevFingerprint string) (*protocol.TransactionInfo, error) {
	address, err := s.codec.AddressFromWeId(weId)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.WeIdInvalid, err)
	}

	tx, err := s.engine.UpdateWeId(ctx, doc, address, privateKey, prevFingerprint)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "weid document updated", "op", op, "weId", weId, "txHash", tx.TransactionHash)
	return tx, nil
}
