package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cestaprecios/pkg/kvstore"
)

// KVBlob is one row of the key-value blob table.
type KVBlob struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (KVBlob) TableName() string { return "kv_blobs" }

// BlobStore persists kvstore blobs in the kv_blobs table.
type BlobStore struct {
	client *Client
	now    func() time.Time
}

var _ kvstore.Store = (*BlobStore)(nil)

func NewBlobStore(client *Client) *BlobStore {
	return &BlobStore{client: client, now: func() time.Time { return time.Now().UTC() }}
}

// Load implements kvstore.Store.
func (s *BlobStore) Load(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, errors.New("blob key is required")
	}
	var row KVBlob
	err := s.client.DB().WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load blob %q: %w", key, err)
	}
	return row.Value, true, nil
}

// Save implements kvstore.Store with an upsert on the key.
func (s *BlobStore) Save(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("blob key is required")
	}
	row := KVBlob{Key: key, Value: value, UpdatedAt: s.now()}
	err := s.client.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save blob %q: %w", key, err)
	}
	return nil
}

// Ping implements kvstore.Pinger.
func (s *BlobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
