package persist

import "time"

type LeafModel struct {
	LeafIndex int64  `gorm:"primaryKey;autoIncrement:false"`
	LeafHash  string `gorm:"not null"`
}

func (LeafModel) TableName() string {
	return "log_leaves"
}

type EntryModel struct {
	LeafIndex  int64  `gorm:"primaryKey;autoIncrement:false"`
	Payload    string `gorm:"not null"`
	LeafHash   string `gorm:"not null"`
	AppendedAt string `gorm:"not null"`
}

func (EntryModel) TableName() string {
	return "log_entries"
}

type AnchorRecordModel struct {
	ID             int64  `gorm:"primaryKey"`
	Root           string `gorm:"not null"`
	TreeSize       int64  `gorm:"not null"`
	TimestampNanos string `gorm:"not null"`
	TxID           string `gorm:"column:txid;uniqueIndex;not null"`
	CreatedAt      time.Time
}

func (AnchorRecordModel) TableName() string {
	return "anchor_records"
}
