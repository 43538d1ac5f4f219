// Package sqlstore is a ledger engine backed by a SQL database through gorm.
//
// Every write runs in a database transaction; updates are guarded by the
// stored document fingerprint so a write computed from a stale read never
// lands.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
	"github.com/pilacorp/go-weid-sdk/weid/did"
	"github.com/pilacorp/go-weid-sdk/weid/engine"
	"github.com/pilacorp/go-weid-sdk/weid/errcode"
	"github.com/pilacorp/go-weid-sdk/weid/protocol"
)

const (
	opCreate     = "create"
	opUpdate     = "update"
	opDeactivate = "deactivate"
)

// Store is a gorm-backed engine.
type Store struct {
	db    *gorm.DB
	codec *codec.Codec
	now   func() time.Time
}

// Open opens (or creates) the sqlite database at path.
func Open(path string, c *codec.Codec) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, c)
}

// New creates a store on db and migrates its schema.
func New(db *gorm.DB, c *codec.Codec) (*Store, error) {
	if err := db.AutoMigrate(&Identity{}, &Transaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, codec: c, now: time.Now}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateWeId(ctx context.Context, address, publicKey, privateKey string) (*protocol.TransactionInfo, error) {
	if _, err := engine.Authorize(address, privateKey); err != nil {
		return nil, err
	}
	doc, err := engine.InitialDocument(s.codec, address, publicKey)
	if err != nil {
		return nil, err
	}
	raw, fingerprint, err := encode(doc)
	if err != nil {
		return nil, err
	}

	address = strings.ToLower(address)
	ts := s.now().Unix()

	var info *protocol.TransactionInfo
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Identity{}).Where("address = ?", address).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("address %s: %w", address, errcode.WeIdAlreadyExist)
		}

		identity := Identity{
			Address:     address,
			WeId:        doc.Id,
			Document:    raw,
			Fingerprint: fingerprint,
			Created:     ts,
			Updated:     ts,
			Version:     1,
		}
		if err := tx.Create(&identity).Error; err != nil {
			return err
		}

		info, err = appendLog(tx, address, opCreate, identity.Version, fingerprint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) GetWeIdDocument(ctx context.Context, weId string) (*did.Document, error) {
	identity, err := s.find(ctx, weId)
	if err != nil {
		return nil, err
	}
	doc, err := did.ParseDocument(identity.Document)
	if err != nil {
		return nil, fmt.Errorf("stored document of %s is corrupt: %w", weId, err)
	}
	return doc, nil
}

func (s *Store) GetWeIdDocumentMetadata(ctx context.Context, weId string) (*did.DocumentMetadata, error) {
	identity, err := s.find(ctx, weId)
	if err != nil {
		return nil, err
	}
	return &did.DocumentMetadata{
		Created:     identity.Created,
		Updated:     identity.Updated,
		Deactivated: identity.Deactivated,
		VersionId:   identity.Version,
	}, nil
}

func (s *Store) IsWeIdExist(ctx context.Context, weId string) (bool, error) {
	address, err := s.address(weId)
	if err != nil {
		return false, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&Identity{}).Where("address = ?", address).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) IsDeactivated(ctx context.Context, weId string) (bool, error) {
	identity, err := s.find(ctx, weId)
	if err != nil {
		return false, err
	}
	return identity.Deactivated, nil
}

func (s *Store) UpdateWeId(ctx context.Context, doc *did.Document, address, privateKey, prevFingerprint string) (*protocol.TransactionInfo, error) {
	if _, err := engine.Authorize(address, privateKey); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required: %w", errcode.IllegalInput)
	}
	raw, fingerprint, err := encode(doc)
	if err != nil {
		return nil, err
	}

	address = strings.ToLower(address)

	var info *protocol.TransactionInfo
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := load(tx, address)
		if err != nil {
			return err
		}
		if current.Deactivated {
			return fmt.Errorf("address %s: %w", address, errcode.WeIdHasBeenDeactivated)
		}
		if err := engine.CheckUpdate(doc, current.WeId, current.Fingerprint, prevFingerprint); err != nil {
			return err
		}

		res := tx.Model(&Identity{}).
			Where("address = ? AND fingerprint = ?", address, prevFingerprint).
			Updates(map[string]any{
				"document":    raw,
				"fingerprint": fingerprint,
				"updated":     s.now().Unix(),
				"version":     gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("address %s: %w", address, errcode.WeIdDocumentConflict)
		}

		info, err = appendLog(tx, address, opUpdate, current.Version+1, fingerprint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) GetWeIdList(ctx context.Context, first, last int) ([]string, error) {
	if err := engine.CheckRange(first, last); err != nil {
		return nil, err
	}
	weIds := []string{}
	if first == last {
		return weIds, nil
	}
	err := s.db.WithContext(ctx).Model(&Identity{}).
		Order("seq asc").
		Offset(first).
		Limit(last-first).
		Pluck("weid", &weIds).Error
	if err != nil {
		return nil, err
	}
	return weIds, nil
}

func (s *Store) GetWeIdCount(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Identity{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// Deactivate marks the DID of address as deactivated.
func (s *Store) Deactivate(ctx context.Context, address, privateKey string) (*protocol.TransactionInfo, error) {
	if _, err := engine.Authorize(address, privateKey); err != nil {
		return nil, err
	}
	address = strings.ToLower(address)

	var info *protocol.TransactionInfo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := load(tx, address)
		if err != nil {
			return err
		}
		if current.Deactivated {
			return fmt.Errorf("address %s: %w", address, errcode.WeIdHasBeenDeactivated)
		}

		err = tx.Model(&Identity{}).Where("address = ?", address).Updates(map[string]any{
			"deactivated": true,
			"updated":     s.now().Unix(),
			"version":     gorm.Expr("version + 1"),
		}).Error
		if err != nil {
			return err
		}

		info, err = appendLog(tx, address, opDeactivate, current.Version+1, current.Fingerprint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) address(weId string) (string, error) {
	address, err := s.codec.AddressFromWeId(weId)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errcode.WeIdInvalid, err)
	}
	return address, nil
}

func (s *Store) find(ctx context.Context, weId string) (*Identity, error) {
	address, err := s.address(weId)
	if err != nil {
		return nil, err
	}
	return load(s.db.WithContext(ctx), address)
}

func load(db *gorm.DB, address string) (*Identity, error) {
	var identity Identity
	if err := db.Where("address = ?", address).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("address %s: %w", address, errcode.WeIdDoesNotExist)
		}
		return nil, err
	}
	return &identity, nil
}

func appendLog(tx *gorm.DB, address, op string, version int, fingerprint string) (*protocol.TransactionInfo, error) {
	entry := Transaction{
		Hash:      engine.TxHash(address, version, fingerprint),
		Address:   address,
		Operation: op,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return &protocol.TransactionInfo{
		BlockNumber:     entry.BlockNumber,
		TransactionHash: entry.Hash,
	}, nil
}

func encode(doc *did.Document) ([]byte, string, error) {
	fingerprint, err := doc.Fingerprint()
	if err != nil {
		return nil, "", err
	}
	raw, err := doc.Canonical()
	if err != nil {
		return nil, "", err
	}
	return raw, fingerprint, nil
}
