package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/testutil"
)

func createTestAdmin(t *testing.T, db *gorm.DB, username string) *models.Admin {
	t.Helper()
	admin := &models.Admin{
		Username:     username,
		PasswordHash: "hashedpassword",
		Name:         "测试管理员",
		Role:         models.RoleOperator,
		Status:       models.AdminStatusActive,
	}
	require.NoError(t, db.Create(admin).Error)
	return admin
}

func TestAdminRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAdminRepository(db)
	ctx := context.Background()

	admin := &models.Admin{
		Username:     "testadmin",
		PasswordHash: "hashedpassword",
		Name:         "测试管理员",
		Role:         models.RoleSuperAdmin,
		Status:       models.AdminStatusActive,
	}
	require.NoError(t, repo.Create(ctx, admin))
	assert.NotZero(t, admin.ID)

	got, err := repo.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "testadmin", got.Username)
	assert.True(t, got.IsActive())

	got, err = repo.GetByUsername(ctx, "testadmin")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAdminRepository_Updates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAdminRepository(db)
	ctx := context.Background()

	admin := createTestAdmin(t, db, "operator")

	t.Run("更新密码", func(t *testing.T) {
		require.NoError(t, repo.UpdatePassword(ctx, admin.ID, "newhash"))
		got, err := repo.GetByID(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, "newhash", got.PasswordHash)
	})

	t.Run("更新登录信息", func(t *testing.T) {
		require.NoError(t, repo.UpdateLoginInfo(ctx, admin.ID, "10.0.0.1"))
		got, err := repo.GetByID(ctx, admin.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
		require.NotNil(t, got.LastLoginIP)
		assert.Equal(t, "10.0.0.1", *got.LastLoginIP)
	})

	t.Run("启用与关闭动态验证码", func(t *testing.T) {
		secret := "encrypted-secret"
		require.NoError(t, repo.UpdateOTP(ctx, admin.ID, &secret, true))
		got, err := repo.GetByID(ctx, admin.ID)
		require.NoError(t, err)
		assert.True(t, got.OTPEnabled)
		require.NotNil(t, got.OTPSecret)
		assert.Equal(t, secret, *got.OTPSecret)

		require.NoError(t, repo.UpdateOTP(ctx, admin.ID, nil, false))
		got, err = repo.GetByID(ctx, admin.ID)
		require.NoError(t, err)
		assert.False(t, got.OTPEnabled)
		assert.Nil(t, got.OTPSecret)
	})

	t.Run("禁用账号", func(t *testing.T) {
		require.NoError(t, repo.UpdateFields(ctx, admin.ID, map[string]interface{}{"status": models.AdminStatusDisabled}))
		got, err := repo.GetByID(ctx, admin.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive())
	})
}
