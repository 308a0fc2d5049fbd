package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/member-ledger/internal/models"
)

func TestOperationLogService(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	admin := &models.Admin{Username: "front", PasswordHash: "x", Name: "前台", Role: models.RoleOperator, Status: models.AdminStatusActive}
	require.NoError(t, env.db.Create(admin).Error)

	old := &models.OperationLog{AdminID: admin.ID, Module: "member", Action: "create", StatusCode: 201, IP: "127.0.0.1"}
	require.NoError(t, env.logRepo.Create(ctx, old))
	require.NoError(t, env.db.Model(old).UpdateColumn("created_at", time.Now().AddDate(0, 0, -200)).Error)

	recent := &models.OperationLog{AdminID: admin.ID, Module: "recharge", Action: "delete", StatusCode: 200, IP: "127.0.0.1"}
	require.NoError(t, env.logRepo.Create(ctx, recent))

	logs, total, err := env.logs.List(ctx, 0, 10, map[string]interface{}{"module": "recharge"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.NotNil(t, logs[0].Admin)
	assert.Equal(t, "front", logs[0].Admin.Username)

	n, err := env.logs.Purge(ctx, time.Now(), 180*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, total, err = env.logs.List(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	n, err = env.logs.Purge(ctx, time.Now(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
