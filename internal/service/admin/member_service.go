// Package admin 提供管理端会员、套餐、统计与审计服务
package admin

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/idgen"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/qrcode"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
	"github.com/dumeirei/member-ledger/internal/service/upload"
)

const dateLayout = "2006-01-02"

// MemberService 会员管理服务
type MemberService struct {
	memberRepo *repository.MemberRepository
	uploads    *upload.UploadService
	qr         *qrcode.Generator
	now        func() time.Time
}

// NewMemberService 创建会员管理服务
func NewMemberService(memberRepo *repository.MemberRepository, uploads *upload.UploadService) *MemberService {
	return &MemberService{
		memberRepo: memberRepo,
		uploads:    uploads,
		qr:         qrcode.NewGenerator(qrcode.WithSize(300)),
		now:        time.Now,
	}
}

// CreateMemberRequest 创建会员请求
type CreateMemberRequest struct {
	Name       string     `json:"name" binding:"required,min=2,max=20"`
	Phone      string     `json:"phone" binding:"required,phone"`
	Email      *string    `json:"email" binding:"omitempty,email,max=100"`
	Gender     string     `json:"gender" binding:"omitempty,oneof=male female other"`
	Level      string     `json:"level" binding:"omitempty,oneof=normal vip diamond"`
	Birthday   *string    `json:"birthday" binding:"omitempty,datetime=2006-01-02"`
	RegisterAt *time.Time `json:"registerAt"`
	Avatar     *string    `json:"avatar" binding:"omitempty,url,max=255"`
	Remark     *string    `json:"remark" binding:"omitempty,max=500"`
}

// UpdateMemberRequest 更新会员请求，余额与积分只能通过账务变动
type UpdateMemberRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=20"`
	Phone    *string `json:"phone" binding:"omitempty,phone"`
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
	Gender   *string `json:"gender" binding:"omitempty,oneof=male female other"`
	Level    *string `json:"level" binding:"omitempty,oneof=normal vip diamond"`
	Birthday *string `json:"birthday" binding:"omitempty,datetime=2006-01-02"`
	State    *string `json:"state" binding:"omitempty,oneof=active disabled"`
	Avatar   *string `json:"avatar" binding:"omitempty,url,max=255"`
	Remark   *string `json:"remark" binding:"omitempty,max=500"`
}

// Create 创建会员
func (s *MemberService) Create(ctx context.Context, req *CreateMemberRequest) (*models.Member, error) {
	if !utils.ValidatePhone(req.Phone) {
		return nil, errors.ErrInvalidParams.WithDetails(errors.FieldError{Field: "phone", Message: "手机号格式不正确"})
	}
	if err := s.ensurePhoneFree(ctx, req.Phone, 0); err != nil {
		return nil, err
	}

	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		return nil, err
	}

	member := &models.Member{
		MemberNo:   idgen.MemberNo(),
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Gender:     valueOr(req.Gender, models.GenderOther),
		Level:      valueOr(req.Level, models.MemberLevelNormal),
		Birthday:   birthday,
		RegisterAt: s.now(),
		State:      models.MemberStateActive,
		Avatar:     req.Avatar,
		Remark:     req.Remark,
	}
	if req.RegisterAt != nil && !req.RegisterAt.IsZero() {
		member.RegisterAt = *req.RegisterAt
	}

	if err := s.memberRepo.Create(ctx, member); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.ErrPhoneExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("member created", logger.MemberID(member.ID), logger.String("member_no", member.MemberNo))
	return member, nil
}

// Get 获取会员详情
func (s *MemberService) Get(ctx context.Context, id int64) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrMemberNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return member, nil
}

// GetByMemberNo 按会员编号查询，支持扫码内容 member:<memberNo>
func (s *MemberService) GetByMemberNo(ctx context.Context, memberNo string) (*models.Member, error) {
	if no, ok := qrcode.ParseMemberCard(memberNo); ok {
		memberNo = no
	}
	member, err := s.memberRepo.GetByMemberNo(ctx, memberNo)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrMemberNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return member, nil
}

// List 会员列表
func (s *MemberService) List(ctx context.Context, offset, limit int, filters map[string]interface{}, sort utils.Sort) ([]*models.Member, int64, error) {
	members, total, err := s.memberRepo.List(ctx, offset, limit, filters, sort)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return members, total, nil
}

// Update 更新会员资料
func (s *MemberService) Update(ctx context.Context, id int64, req *UpdateMemberRequest) (*models.Member, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Phone != nil {
		if !utils.ValidatePhone(*req.Phone) {
			return nil, errors.ErrInvalidParams.WithDetails(errors.FieldError{Field: "phone", Message: "手机号格式不正确"})
		}
		if err := s.ensurePhoneFree(ctx, *req.Phone, id); err != nil {
			return nil, err
		}
		fields["phone"] = *req.Phone
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Gender != nil {
		fields["gender"] = *req.Gender
	}
	if req.Level != nil {
		fields["level"] = *req.Level
	}
	if req.Birthday != nil {
		birthday, err := parseBirthday(req.Birthday)
		if err != nil {
			return nil, err
		}
		fields["birthday"] = birthday
	}
	if req.State != nil {
		fields["state"] = *req.State
	}
	if req.Avatar != nil {
		fields["avatar"] = *req.Avatar
	}
	if req.Remark != nil {
		fields["remark"] = *req.Remark
	}

	if len(fields) > 0 {
		if err := s.memberRepo.UpdateFields(ctx, id, fields); err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, errors.ErrPhoneExists
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除会员，存在账务记录时拒绝
func (s *MemberService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	has, err := s.memberRepo.HasLedgerRecords(ctx, id)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if has {
		return errors.ErrMemberHasRecords
	}

	if err := s.memberRepo.Delete(ctx, id); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("member deleted", logger.MemberID(id))
	return nil
}

// QRCode 生成会员卡二维码 PNG
func (s *MemberService) QRCode(ctx context.Context, id int64) ([]byte, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.MemberCardPNG(member.MemberNo)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	return png, nil
}

// UploadAvatar 上传头像并更新会员资料
func (s *MemberService) UploadAvatar(ctx context.Context, id int64, file *upload.ImageFile) (*models.Member, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	resp, err := s.uploads.UploadImage(ctx, upload.DirAvatar, file)
	if err != nil {
		return nil, err
	}

	if err := s.memberRepo.UpdateFields(ctx, id, map[string]interface{}{"avatar": resp.URL}); err != nil {
		s.uploads.Remove(ctx, resp.Key)
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.Get(ctx, id)
}

func (s *MemberService) ensurePhoneFree(ctx context.Context, phone string, excludeID int64) error {
	exists, err := s.memberRepo.ExistsByPhone(ctx, phone, excludeID)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return errors.ErrPhoneExists
	}
	return nil
}

func parseBirthday(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, *s, time.Local)
	if err != nil {
		return nil, errors.ErrInvalidParams.WithDetails(errors.FieldError{Field: "birthday", Message: "日期格式应为 YYYY-MM-DD"})
	}
	return &t, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
