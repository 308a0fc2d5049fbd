package admin

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/qrcode"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
)

func TestMemberService_Create(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	t.Run("默认值", func(t *testing.T) {
		phone := uniquePhone()
		m, err := env.members.Create(ctx, &CreateMemberRequest{Name: "张三", Phone: phone, Birthday: strPtr("1990-05-01")})
		require.NoError(t, err)
		assert.NotEmpty(t, m.MemberNo)
		assert.Equal(t, models.GenderOther, m.Gender)
		assert.Equal(t, models.MemberLevelNormal, m.Level)
		assert.Equal(t, models.MemberStateActive, m.State)
		assert.True(t, m.Balance.IsZero())
		require.NotNil(t, m.Birthday)
		assert.Equal(t, "1990-05-01", m.Birthday.Format(dateLayout))
		assert.False(t, m.RegisterAt.IsZero())
	})

	t.Run("手机号重复", func(t *testing.T) {
		phone := uniquePhone()
		_, err := env.members.Create(ctx, &CreateMemberRequest{Name: "李四", Phone: phone})
		require.NoError(t, err)
		_, err = env.members.Create(ctx, &CreateMemberRequest{Name: "王五", Phone: phone})
		assert.ErrorIs(t, err, errors.ErrPhoneExists)
	})

	t.Run("手机号格式错误", func(t *testing.T) {
		_, err := env.members.Create(ctx, &CreateMemberRequest{Name: "赵六", Phone: "12345"})
		assert.ErrorIs(t, err, errors.ErrInvalidParams)
	})

	t.Run("生日格式错误", func(t *testing.T) {
		_, err := env.members.Create(ctx, &CreateMemberRequest{Name: "赵六", Phone: uniquePhone(), Birthday: strPtr("1990/05/01")})
		appErr := errors.GetAppError(err)
		require.Len(t, appErr.Details, 1)
		assert.Equal(t, "birthday", appErr.Details[0].Field)
	})
}

func TestMemberService_Update(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	a, err := env.members.Create(ctx, &CreateMemberRequest{Name: "张三", Phone: uniquePhone()})
	require.NoError(t, err)
	b, err := env.members.Create(ctx, &CreateMemberRequest{Name: "李四", Phone: uniquePhone()})
	require.NoError(t, err)

	updated, err := env.members.Update(ctx, a.ID, &UpdateMemberRequest{
		Name:  strPtr("张三丰"),
		Level: strPtr(models.MemberLevelVIP),
		State: strPtr(models.MemberStateDisabled),
	})
	require.NoError(t, err)
	assert.Equal(t, "张三丰", updated.Name)
	assert.Equal(t, models.MemberLevelVIP, updated.Level)
	assert.False(t, updated.IsActive())

	_, err = env.members.Update(ctx, a.ID, &UpdateMemberRequest{Phone: strPtr(b.Phone)})
	assert.ErrorIs(t, err, errors.ErrPhoneExists)

	// 保持原手机号不算冲突
	_, err = env.members.Update(ctx, a.ID, &UpdateMemberRequest{Phone: strPtr(a.Phone)})
	assert.NoError(t, err)

	_, err = env.members.Update(ctx, 99999, &UpdateMemberRequest{Name: strPtr("x")})
	assert.ErrorIs(t, err, errors.ErrMemberNotFound)
}

func TestMemberService_Delete(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	withRecords := insertMember(t, env.db, time.Now())
	insertBalanceRecharge(t, env.db, withRecords.ID, "10", time.Now())
	assert.ErrorIs(t, env.members.Delete(ctx, withRecords.ID), errors.ErrMemberHasRecords)

	withConsumption := insertMember(t, env.db, time.Now())
	insertConsumption(t, env.db, withConsumption.ID, "5", time.Now())
	assert.ErrorIs(t, env.members.Delete(ctx, withConsumption.ID), errors.ErrMemberHasRecords)

	clean := insertMember(t, env.db, time.Now())
	require.NoError(t, env.members.Delete(ctx, clean.ID))
	_, err := env.members.Get(ctx, clean.ID)
	assert.ErrorIs(t, err, errors.ErrMemberNotFound)

	assert.ErrorIs(t, env.members.Delete(ctx, clean.ID), errors.ErrMemberNotFound)
}

func TestMemberService_List(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	_, err := env.members.Create(ctx, &CreateMemberRequest{Name: "张小明", Phone: uniquePhone()})
	require.NoError(t, err)
	_, err = env.members.Create(ctx, &CreateMemberRequest{Name: "李小红", Phone: uniquePhone(), Level: models.MemberLevelVIP})
	require.NoError(t, err)

	sort := utils.Sort{Field: "created_at", Desc: true}

	list, total, err := env.members.List(ctx, 0, 10, map[string]interface{}{"search": "张"}, sort)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "张小明", list[0].Name)

	_, total, err = env.members.List(ctx, 0, 10, map[string]interface{}{"level": models.MemberLevelVIP}, sort)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestMemberService_GetByMemberNo(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	m, err := env.members.Create(ctx, &CreateMemberRequest{Name: "张三", Phone: uniquePhone()})
	require.NoError(t, err)

	got, err := env.members.GetByMemberNo(ctx, m.MemberNo)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	got, err = env.members.GetByMemberNo(ctx, qrcode.MemberCardContent(m.MemberNo))
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = env.members.GetByMemberNo(ctx, "nope")
	assert.ErrorIs(t, err, errors.ErrMemberNotFound)
}

func TestMemberService_QRCode(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()
	m := insertMember(t, env.db, time.Now())

	png, err := env.members.QRCode(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = env.members.QRCode(ctx, 99999)
	assert.ErrorIs(t, err, errors.ErrMemberNotFound)
}

func TestMemberService_UploadAvatar(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()
	m := insertMember(t, env.db, time.Now())

	updated, err := env.members.UploadAvatar(ctx, m.ID, pngImage("me.png"))
	require.NoError(t, err)
	require.NotNil(t, updated.Avatar)
	assert.True(t, strings.HasPrefix(*updated.Avatar, "https://mock-oss.example.com/avatars/"))

	key := strings.TrimPrefix(*updated.Avatar, "https://mock-oss.example.com/")
	_, ok := env.uploader.File(key)
	assert.True(t, ok)

	_, err = env.members.UploadAvatar(ctx, m.ID, pngImage("me.exe"))
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}
