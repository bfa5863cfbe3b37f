package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cestaprecios/pkg/config"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&KVBlob{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&KVBlob{Key: "committed", Value: "1"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&KVBlob{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&KVBlob{Key: "rolled", Value: "2"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&KVBlob{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := NewFromGorm(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), "oracle", config.DBConfig{DSN: "x"}, nil); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
	if _, err := New(context.Background(), config.StoreDriverSQLite, config.DBConfig{}, nil); err == nil {
		t.Fatal("expected missing dsn to fail")
	}
}

func TestBlobStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewBlobStore(NewFromGorm(newTestDB(t)))

	if _, found, err := store.Load(ctx, "products"); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}

	if err := store.Save(ctx, "products", "[]"); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := store.Save(ctx, "products", `[{"id":"1"}]`); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	value, found, err := store.Load(ctx, "products")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if value != `[{"id":"1"}]` {
		t.Fatalf("expected last write to win, got %q", value)
	}

	var count int64
	if err := store.client.DB().Model(&KVBlob{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row after upsert, got %d", count)
	}

	if err := store.Save(ctx, "", "x"); err == nil {
		t.Fatal("expected empty key to fail")
	}
}
