package sqlstore

import (
	"time"
)

// Identity is the stored state of one DID.
type Identity struct {
	Seq         int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	Address     string `gorm:"column:address;uniqueIndex"`
	WeId        string `gorm:"column:weid"`
	Document    []byte `gorm:"column:document"`
	Fingerprint string `gorm:"column:fingerprint"`
	Created     int64  `gorm:"column:created"`
	Updated     int64  `gorm:"column:updated"`
	Deactivated bool   `gorm:"column:deactivated"`
	Version     int    `gorm:"column:version"`
}

// Transaction is an entry of the write log. Its sequence number plays the
// role of a block number.
type Transaction struct {
	BlockNumber uint64 `gorm:"column:block_number;primaryKey;autoIncrement"`
	Hash        string `gorm:"column:hash;uniqueIndex"`
	Address     string `gorm:"column:address;index"`
	Operation   string `gorm:"column:operation"`
	CreatedAt   time.Time
}
