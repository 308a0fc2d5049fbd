package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/middleware"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
	adminService "github.com/dumeirei/member-ledger/internal/service/admin"
	uploadService "github.com/dumeirei/member-ledger/internal/service/upload"
	"github.com/dumeirei/member-ledger/internal/testutil"
	"github.com/dumeirei/member-ledger/pkg/oss"
)

type pageBody struct {
	Success bool `json:"success"`
	Data    struct {
		Items []models.Member `json:"items"`
		Total int64           `json:"total"`
	} `json:"data"`
}

func setupMemberRouter(t *testing.T) (*gin.Engine, *gorm.DB, *oss.MockUploader) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler.RegisterValidators()

	db := testutil.NewDB(t)
	uploader := oss.NewMockUploader()
	memberSvc := adminService.NewMemberService(repository.NewMemberRepository(db), uploadService.NewUploadService(uploader))
	h := NewMemberHandler(memberSvc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyAdminID, int64(1))
		c.Next()
	})
	r.GET("/members", h.List)
	r.POST("/members", h.Create)
	r.GET("/members/by-no/:memberNo", h.GetByMemberNo)
	r.GET("/members/:id", h.Get)
	r.PUT("/members/:id", h.Update)
	r.DELETE("/members/:id", h.Delete)
	r.GET("/members/:id/qrcode", h.QRCode)
	r.POST("/members/:id/avatar", h.UploadAvatar)
	return r, db, uploader
}

func seedMember(t *testing.T, db *gorm.DB, name, phone, level, balance string) *models.Member {
	t.Helper()
	m := &models.Member{
		MemberNo: "M" + phone,
		Name:     name,
		Phone:    phone,
		Gender:   models.GenderOther,
		Level:    level,
		State:    models.MemberStateActive,
		Balance:  decimal.RequireFromString(balance),
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func serve(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMemberHandler_ListFiltersAndSort(t *testing.T) {
	r, db, _ := setupMemberRouter(t)
	seedMember(t, db, "张三", "13800000001", models.MemberLevelNormal, "10")
	seedMember(t, db, "李四", "13800000002", models.MemberLevelVIP, "300")
	seedMember(t, db, "王五", "13800000003", models.MemberLevelVIP, "50")

	w := serve(r, http.MethodGet, "/members?level=vip&sortBy=balance&sortOrder=desc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body pageBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Data.Total)
	require.Len(t, body.Data.Items, 2)
	assert.Equal(t, "李四", body.Data.Items[0].Name)
	assert.Equal(t, "王五", body.Data.Items[1].Name)

	w = serve(r, http.MethodGet, "/members?search=0003", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Data.Total)

	w = serve(r, http.MethodGet, "/members?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.Data.Total)
	assert.Len(t, body.Data.Items, 1)
}

func TestMemberHandler_CreateValidation(t *testing.T) {
	r, _, _ := setupMemberRouter(t)

	cases := []struct {
		name string
		body gin.H
		code int
	}{
		{"缺少姓名", gin.H{"phone": "13800000001"}, http.StatusBadRequest},
		{"手机号格式错误", gin.H{"name": "张三", "phone": "1380000"}, http.StatusBadRequest},
		{"等级非法", gin.H{"name": "张三", "phone": "13800000001", "level": "gold"}, http.StatusBadRequest},
		{"生日格式错误", gin.H{"name": "张三", "phone": "13800000001", "birthday": "2000/01/01"}, http.StatusBadRequest},
		{"创建成功", gin.H{"name": "张三", "phone": "13800000001", "birthday": "2000-01-01"}, http.StatusCreated},
		{"手机号重复", gin.H{"name": "张四", "phone": "13800000001"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodPost, "/members", tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
}

func TestMemberHandler_GetAndUpdate(t *testing.T) {
	r, db, _ := setupMemberRouter(t)
	m := seedMember(t, db, "张三", "13800000001", models.MemberLevelNormal, "10")

	w := serve(r, http.MethodGet, "/members/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodGet, "/members/99999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/members/by-no/"+m.MemberNo, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPut, fmt.Sprintf("/members/%d", m.ID), gin.H{"name": "张三丰", "level": "diamond"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Member
	require.NoError(t, db.First(&updated, m.ID).Error)
	assert.Equal(t, "张三丰", updated.Name)
	assert.Equal(t, models.MemberLevelDiamond, updated.Level)
	assert.True(t, decimal.RequireFromString("10").Equal(updated.Balance))
}

func TestMemberHandler_DeleteWithoutRecords(t *testing.T) {
	r, db, _ := setupMemberRouter(t)
	m := seedMember(t, db, "张三", "13800000001", models.MemberLevelNormal, "0")

	w := serve(r, http.MethodDelete, fmt.Sprintf("/members/%d", m.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, fmt.Sprintf("/members/%d", m.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMemberHandler_QRCode(t *testing.T) {
	r, db, _ := setupMemberRouter(t)
	m := seedMember(t, db, "张三", "13800000001", models.MemberLevelNormal, "0")

	w := serve(r, http.MethodGet, fmt.Sprintf("/members/%d/qrcode", m.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", w.Body.String()[:4])
}

func TestMemberHandler_UploadAvatar(t *testing.T) {
	r, db, _ := setupMemberRouter(t)
	m := seedMember(t, db, "张三", "13800000001", models.MemberLevelNormal, "0")

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/members/%d/avatar", m.ID), &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	w := upload("avatar.png", png)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Member
	require.NoError(t, db.First(&updated, m.ID).Error)
	require.NotNil(t, updated.Avatar)
	assert.Contains(t, *updated.Avatar, "https://mock-oss.example.com/avatars/")

	w = upload("avatar.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("fake.png", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
