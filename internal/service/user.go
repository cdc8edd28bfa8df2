package service

import (
	"errors"

	"github.com/ECeternalcat/simple-talk-client/internal/auth"
	"github.com/ECeternalcat/simple-talk-client/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户注册、登录与令牌续期逻辑。
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register 注册新用户。首个注册的用户自动获得 admin 角色。
func (s *UserService) Register(username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		var total int64
		if err := tx.Model(&models.User{}).Count(&total).Error; err != nil {
			return err
		}
		role := models.RoleNormal
		if total == 0 {
			role = models.RoleAdmin
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		user = models.User{Username: username, PasswordHash: hash, Role: role}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate 校验用户名密码,失败一律返回 ErrInvalidCredentials。
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// IssueToken 为登录成功的用户签发一个新的不透明令牌。
func (s *UserService) IssueToken(userID uint) (string, error) {
	token := auth.NewToken()
	if err := auth.SaveToken(s.db, userID, token); err != nil {
		return "", err
	}
	return token, nil
}

// UserByToken 由令牌恢复会话身份。
func (s *UserService) UserByToken(token string) (*models.User, error) {
	user, err := auth.ResolveToken(s.db, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}
