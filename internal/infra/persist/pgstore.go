package persist

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"merklelog/internal/domain"
)

// PostgresStore is the stronger-durability backend: every accepted append
// is committed in a transaction before being acknowledged. It persists the
// same three append-only sequences the file store keeps as JSON documents.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&LeafModel{}, &EntryModel{}, &AnchorRecordModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func NewPostgresStoreWithDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save writes the snapshot's new tail. The sequences are append-only, so
// rows at already-persisted indices are left untouched.
func (p *PostgresStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if p.db == nil {
		return errDBUnavailable
	}
	if len(snapshot.Leaves) != len(snapshot.Entries) {
		return fmt.Errorf("%w: %d leaves but %d entries", domain.ErrCorruptStorage, len(snapshot.Leaves), len(snapshot.Entries))
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var persisted int64
		if err := tx.Model(&LeafModel{}).Count(&persisted).Error; err != nil {
			return err
		}
		for i := persisted; i < int64(len(snapshot.Leaves)); i++ {
			leaf := LeafModel{LeafIndex: i, LeafHash: snapshot.Leaves[i]}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&leaf).Error; err != nil {
				return err
			}
			entry := EntryModel{
				LeafIndex:  i,
				Payload:    snapshot.Entries[i].Payload,
				LeafHash:   snapshot.Entries[i].Leaf,
				AppendedAt: snapshot.Entries[i].AppendedAt,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresStore) Load(ctx context.Context) (domain.Snapshot, error) {
	if p.db == nil {
		return domain.Snapshot{}, errDBUnavailable
	}
	var leaves []LeafModel
	if err := p.db.WithContext(ctx).Order("leaf_index ASC").Find(&leaves).Error; err != nil {
		return domain.Snapshot{}, err
	}
	var entries []EntryModel
	if err := p.db.WithContext(ctx).Order("leaf_index ASC").Find(&entries).Error; err != nil {
		return domain.Snapshot{}, err
	}

	snapshot := domain.Snapshot{
		Leaves:  make([]string, 0, len(leaves)),
		Entries: make([]domain.LogEntry, 0, len(entries)),
	}
	for _, leaf := range leaves {
		snapshot.Leaves = append(snapshot.Leaves, leaf.LeafHash)
	}
	for _, entry := range entries {
		snapshot.Entries = append(snapshot.Entries, domain.LogEntry{
			Payload:    entry.Payload,
			Leaf:       entry.LeafHash,
			AppendedAt: entry.AppendedAt,
		})
	}
	return snapshot, nil
}

func (p *PostgresStore) Append(ctx context.Context, record domain.AnchorRecord) error {
	if p.db == nil {
		return errDBUnavailable
	}
	if record.Root == "" {
		return errors.New("anchor root is required")
	}
	if record.TxID == "" {
		return errors.New("anchor txid is required")
	}
	model := AnchorRecordModel{
		Root:           record.Root,
		TreeSize:       int64(record.Size),
		TimestampNanos: record.TimestampNanos,
		TxID:           record.TxID,
	}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}

func (p *PostgresStore) List(ctx context.Context) ([]domain.AnchorRecord, error) {
	if p.db == nil {
		return nil, errDBUnavailable
	}
	var models []AnchorRecordModel
	if err := p.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AnchorRecord, 0, len(models))
	for _, model := range models {
		out = append(out, domain.AnchorRecord{
			Root:           model.Root,
			Size:           uint64(model.TreeSize),
			TimestampNanos: model.TimestampNanos,
			TxID:           model.TxID,
		})
	}
	return out, nil
}

var errDBUnavailable = errors.New("database unavailable")
