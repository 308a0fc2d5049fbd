// Package database 数据库模块单元测试
package database

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/member-ledger/internal/common/config"
	"github.com/dumeirei/member-ledger/internal/models"
)

type item struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	oldDB := db
	db = testDB
	t.Cleanup(func() {
		db = oldDB
		_ = sqlDB.Close()
	})
	return testDB
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, getLogLevel(true))
	assert.Equal(t, logger.Silent, getLogLevel(false))
}

func TestOpenDialector(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		d, err := openDialector(&config.DatabaseConfig{Driver: "postgres"})
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	})

	t.Run("sqlite", func(t *testing.T) {
		d, err := openDialector(&config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
	})

	t.Run("不支持的驱动", func(t *testing.T) {
		_, err := openDialector(&config.DatabaseConfig{Driver: "oracle"})
		assert.Error(t, err)
	})
}

func TestPaginate(t *testing.T) {
	testDB := setupTestDB(t)
	require.NoError(t, testDB.AutoMigrate(&item{}))
	for i := 1; i <= 25; i++ {
		require.NoError(t, testDB.Create(&item{ID: int64(i), Name: "x"}).Error)
	}

	tests := []struct {
		name    string
		offset  int
		limit   int
		wantLen int
		firstID int64
	}{
		{"第一页", 0, 10, 10, 1},
		{"最后一页", 20, 10, 5, 21},
		{"负偏移归零", -5, 10, 10, 1},
		{"零限制使用默认", 0, 0, 10, 1},
		{"超过上限", 0, 1000, 25, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []item
			require.NoError(t, testDB.Scopes(Paginate(tt.offset, tt.limit)).Order("id").Find(&items).Error)
			assert.Len(t, items, tt.wantLen)
			assert.Equal(t, tt.firstID, items[0].ID)
		})
	}
}

func TestBetween_HalfOpen(t *testing.T) {
	testDB := setupTestDB(t)
	require.NoError(t, testDB.AutoMigrate(&item{}))

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	next := day.AddDate(0, 0, 1)
	require.NoError(t, testDB.Create(&item{ID: 1, CreatedAt: day}).Error)
	require.NoError(t, testDB.Create(&item{ID: 2, CreatedAt: day.Add(23 * time.Hour)}).Error)
	require.NoError(t, testDB.Create(&item{ID: 3, CreatedAt: next}).Error)

	var count int64
	require.NoError(t, testDB.Model(&item{}).Scopes(Between("created_at", &day, &next)).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	require.NoError(t, testDB.Model(&item{}).Scopes(Between("created_at", &next, nil)).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTransaction(t *testing.T) {
	testDB := setupTestDB(t)
	require.NoError(t, testDB.AutoMigrate(&item{}))
	ctx := context.Background()

	t.Run("提交", func(t *testing.T) {
		err := Transaction(ctx, func(tx *gorm.DB) error {
			return tx.Create(&item{ID: 1, Name: "ok"}).Error
		})
		require.NoError(t, err)

		var count int64
		testDB.Model(&item{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("回滚", func(t *testing.T) {
		err := Transaction(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(&item{ID: 2, Name: "rollback"}).Error; err != nil {
				return err
			}
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		var count int64
		testDB.Model(&item{}).Where("id = ?", 2).Count(&count)
		assert.Equal(t, int64(0), count)
	})
}

func TestMigrate(t *testing.T) {
	testDB := setupTestDB(t)
	require.NoError(t, Migrate(testDB))

	for _, m := range AllModels() {
		assert.True(t, testDB.Migrator().HasTable(m))
	}
	assert.True(t, testDB.Migrator().HasColumn(&models.Recharge{}, "remaining_amount"))
	assert.False(t, testDB.Migrator().HasColumn(&models.Recharge{}, "status"))
}

func TestClose(t *testing.T) {
	oldDB := db
	db = nil
	assert.NoError(t, Close())
	db = oldDB
}
