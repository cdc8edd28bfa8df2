package auth

import (
	"github.com/ECeternalcat/simple-talk-client/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NewToken 生成一个不透明令牌串,本身不携带任何身份信息。
func NewToken() string {
	return uuid.NewString()
}

// SaveToken 为用户落库一个新令牌。
func SaveToken(db *gorm.DB, userID uint, token string) error {
	return db.Create(&models.AuthToken{Token: token, UserID: userID}).Error
}

// ResolveToken 由令牌反查属主,查不到即视为无效。
func ResolveToken(db *gorm.DB, token string) (*models.User, error) {
	var at models.AuthToken
	if err := db.Where("token = ?", token).First(&at).Error; err != nil {
		return nil, err
	}
	var user models.User
	if err := db.First(&user, at.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
