// Package auth 提供管理员认证服务
package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/crypto"
	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/jwt"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/qrcode"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
)

// Options 认证服务选项
type Options struct {
	BcryptCost int
	TOTPIssuer string
}

// AuthService 管理员认证服务
type AuthService struct {
	adminRepo  *repository.AdminRepository
	jwtManager *jwt.Manager
	blacklist  *Blacklist
	cipher     *crypto.AES
	qr         *qrcode.Generator
	opts       Options
}

// NewAuthService 创建管理员认证服务
func NewAuthService(
	adminRepo *repository.AdminRepository,
	jwtManager *jwt.Manager,
	blacklist *Blacklist,
	cipher *crypto.AES,
	opts Options,
) *AuthService {
	if opts.TOTPIssuer == "" {
		opts.TOTPIssuer = "MemberLedger"
	}
	return &AuthService{
		adminRepo:  adminRepo,
		jwtManager: jwtManager,
		blacklist:  blacklist,
		cipher:     cipher,
		qr:         qrcode.NewGenerator(qrcode.WithSize(220)),
		opts:       opts,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required"`
	OTPCode  string `json:"otpCode" binding:"omitempty,len=6,numeric"`
	IP       string `json:"-"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Admin *AdminInfo     `json:"admin"`
	Token *jwt.TokenPair `json:"token"`
}

// AdminInfo 管理员信息（不含敏感字段）
type AdminInfo struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Name        string     `json:"name"`
	Phone       *string    `json:"phone,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Role        string     `json:"role"`
	OTPEnabled  bool       `json:"otpEnabled"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Login 管理员登录
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPasswordError
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if !crypto.VerifyPassword(req.Password, admin.PasswordHash) {
		return nil, errors.ErrPasswordError
	}
	if !admin.IsActive() {
		return nil, errors.ErrAccountDisabled
	}

	if admin.OTPEnabled {
		if req.OTPCode == "" {
			return nil, errors.ErrOTPRequired
		}
		if err := s.validateOTP(admin, req.OTPCode); err != nil {
			return nil, err
		}
	}

	pair, err := s.jwtManager.GenerateTokenPair(subjectOf(admin))
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	if err := s.adminRepo.UpdateLoginInfo(ctx, admin.ID, req.IP); err != nil {
		logger.Warn("更新登录信息失败", logger.AdminID(admin.ID), logger.Err(err))
	}

	logger.Info("管理员登录", logger.AdminID(admin.ID), logger.String("username", admin.Username), logger.IP(req.IP))
	return &LoginResponse{Admin: toAdminInfo(admin), Token: pair}, nil
}

// LogoutRequest 注销请求，可同时吊销刷新令牌
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout 注销：访问令牌与刷新令牌的 jti 加入黑名单直至过期
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims, req *LogoutRequest) error {
	now := time.Now()
	if claims != nil {
		if err := s.blacklist.Revoke(ctx, claims.ID, claims.Remaining(now)); err != nil {
			return errors.ErrCacheError.WithError(err)
		}
	}

	if req != nil && req.RefreshToken != "" {
		refresh, err := s.jwtManager.ParseRefreshToken(req.RefreshToken)
		if err != nil {
			// 刷新令牌已失效，无需吊销
			return nil
		}
		if claims != nil && refresh.AdminID != claims.AdminID {
			return errors.ErrTokenInvalid
		}
		if err := s.blacklist.Revoke(ctx, refresh.ID, refresh.Remaining(now)); err != nil {
			return errors.ErrCacheError.WithError(err)
		}
	}
	return nil
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 使用刷新令牌换取新令牌对，旧刷新令牌随即吊销
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, mapTokenError(err)
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errors.ErrCacheError.WithError(err)
	}
	if revoked {
		return nil, errors.ErrTokenRefreshFail
	}

	admin, err := s.getAdmin(ctx, claims.AdminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsActive() {
		return nil, errors.ErrAccountDisabled
	}

	pair, err := s.jwtManager.GenerateTokenPair(subjectOf(admin))
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	if err := s.blacklist.Revoke(ctx, claims.ID, claims.Remaining(time.Now())); err != nil {
		logger.Warn("吊销旧刷新令牌失败", logger.AdminID(admin.ID), logger.Err(err))
	}
	return pair, nil
}

// Profile 获取当前管理员信息
func (s *AuthService) Profile(ctx context.Context, adminID int64) (*AdminInfo, error) {
	admin, err := s.getAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return toAdminInfo(admin), nil
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=32,nefield=OldPassword"`
}

// ChangePassword 修改密码
func (s *AuthService) ChangePassword(ctx context.Context, adminID int64, req *ChangePasswordRequest) error {
	admin, err := s.getAdmin(ctx, adminID)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(req.OldPassword, admin.PasswordHash) {
		return errors.ErrPasswordError.WithMessage("原密码错误")
	}

	hash, err := crypto.HashPassword(req.NewPassword, s.opts.BcryptCost)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}

	if err := s.adminRepo.UpdatePassword(ctx, adminID, hash); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// OTPSetup 动态验证码初始化结果
type OTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauthUrl"`
	QRCode string `json:"qrCode"`
}

// SetupOTP 生成新的动态验证码密钥，确认前不生效
func (s *AuthService) SetupOTP(ctx context.Context, adminID int64) (*OTPSetup, error) {
	admin, err := s.getAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.OTPEnabled {
		return nil, errors.ErrOTPAlreadyOn
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.opts.TOTPIssuer,
		AccountName: admin.Username,
	})
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	encrypted, err := s.cipher.Encrypt(key.Secret())
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	if err := s.adminRepo.UpdateOTP(ctx, adminID, &encrypted, false); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	qr, err := s.qr.GenerateDataURL(key.URL())
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	return &OTPSetup{Secret: key.Secret(), URL: key.URL(), QRCode: qr}, nil
}

// OTPCodeRequest 动态验证码确认请求
type OTPCodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// EnableOTP 校验验证码后启用动态验证码
func (s *AuthService) EnableOTP(ctx context.Context, adminID int64, code string) error {
	admin, err := s.getAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.OTPEnabled {
		return errors.ErrOTPAlreadyOn
	}
	if admin.OTPSecret == nil {
		return errors.ErrOTPNotSetup
	}

	if err := s.validateOTP(admin, code); err != nil {
		return err
	}

	if err := s.adminRepo.UpdateOTP(ctx, adminID, admin.OTPSecret, true); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("启用动态验证码", logger.AdminID(adminID))
	return nil
}

// DisableOTPRequest 关闭动态验证码请求
type DisableOTPRequest struct {
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required,len=6,numeric"`
}

// DisableOTP 关闭动态验证码并清除密钥
func (s *AuthService) DisableOTP(ctx context.Context, adminID int64, req *DisableOTPRequest) error {
	admin, err := s.getAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(req.Password, admin.PasswordHash) {
		return errors.ErrPasswordError.WithMessage("密码错误")
	}
	if !admin.OTPEnabled {
		return errors.ErrOTPNotSetup
	}
	if err := s.validateOTP(admin, req.Code); err != nil {
		return err
	}

	if err := s.adminRepo.UpdateOTP(ctx, adminID, nil, false); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("关闭动态验证码", logger.AdminID(adminID))
	return nil
}

// SeedDefaultAdmin 没有任何管理员时创建默认超级管理员
func (s *AuthService) SeedDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	count, err := s.adminRepo.Count(ctx)
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := crypto.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return false, errors.ErrInternalError.WithError(err)
	}

	admin := &models.Admin{
		Username:     username,
		PasswordHash: hash,
		Name:         "超级管理员",
		Role:         models.RoleSuperAdmin,
		Status:       models.AdminStatusActive,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("已创建默认管理员", logger.AdminID(admin.ID), logger.String("username", username))
	return true, nil
}

func (s *AuthService) getAdmin(ctx context.Context, adminID int64) (*models.Admin, error) {
	admin, err := s.adminRepo.GetByID(ctx, adminID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUnauthorized.WithMessage("管理员不存在")
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return admin, nil
}

func (s *AuthService) validateOTP(admin *models.Admin, code string) error {
	if admin.OTPSecret == nil {
		return errors.ErrOTPNotSetup
	}
	secret, err := s.cipher.Decrypt(*admin.OTPSecret)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}
	if !totp.Validate(code, secret) {
		return errors.ErrOTPInvalid
	}
	return nil
}

func subjectOf(admin *models.Admin) jwt.Subject {
	return jwt.Subject{AdminID: admin.ID, Username: admin.Username, Role: admin.Role}
}

func toAdminInfo(admin *models.Admin) *AdminInfo {
	return &AdminInfo{
		ID:          admin.ID,
		Username:    admin.Username,
		Name:        admin.Name,
		Phone:       admin.Phone,
		Email:       admin.Email,
		Role:        admin.Role,
		OTPEnabled:  admin.OTPEnabled,
		LastLoginAt: admin.LastLoginAt,
	}
}

func mapTokenError(err error) error {
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		return errors.ErrTokenExpired
	}
	return errors.ErrTokenInvalid.WithError(err)
}
