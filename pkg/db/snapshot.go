package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot is one persisted blob row.
type Snapshot struct {
	Key       string `gorm:"column:name;primaryKey;size:128"`
	Blob      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (Snapshot) TableName() string {
	return "snapshots"
}

var _ storage.BlobStore = (*Client)(nil)

func (c *Client) Load(ctx context.Context, key string) ([]byte, error) {
	var row Snapshot
	err := c.conn.WithContext(ctx).Where("name = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", key, err)
	}
	return row.Blob, nil
}

// Save upserts the blob under key.
func (c *Client) Save(ctx context.Context, key string, blob []byte) error {
	return c.WithTx(ctx, func(tx *gorm.DB) error {
		row := Snapshot{Key: key, Blob: blob, UpdatedAt: time.Now().UTC()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("saving snapshot %s: %w", key, err)
		}
		return nil
	})
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.conn.WithContext(ctx).Where("name = ?", key).Delete(&Snapshot{}).Error; err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", key, err)
	}
	return nil
}
