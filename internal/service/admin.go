package service

import (
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/auth"
	"github.com/ECeternalcat/simple-talk-client/internal/models"

	"gorm.io/gorm"
)

// AdminService 是管理端操作对存储层的薄封装。
type AdminService struct {
	db *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// AdminUserDTO 不携带密码散列。前端历史原因使用 _id 字段名。
type AdminUserDTO struct {
	ID       uint   `json:"_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type AdminRoomDTO struct {
	ID           uint      `json:"id"`
	Name         *string   `json:"name"`
	IsPrivate    bool      `json:"is_private"`
	CreatedAt    time.Time `json:"created_at"`
	Participants []string  `json:"participants"`
}

func (s *AdminService) AllUsers() ([]AdminUserDTO, error) {
	var users []models.User
	if err := s.db.Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]AdminUserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, AdminUserDTO{ID: u.ID, Username: u.Username, Role: u.Role})
	}
	return out, nil
}

// AllRooms 返回全部持久房间及参与者用户名,供管理面板展示。
func (s *AdminService) AllRooms() ([]AdminRoomDTO, error) {
	out := []AdminRoomDTO{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rooms []models.Room
		if err := tx.Order("created_at desc").Find(&rooms).Error; err != nil {
			return err
		}
		for _, r := range rooms {
			var participants []string
			err := tx.Raw(`SELECT u.username
				FROM users u
				JOIN room_participants rp ON u.id = rp.user_id
				WHERE rp.room_id = ?`, r.ID).Scan(&participants).Error
			if err != nil {
				return err
			}
			out = append(out, AdminRoomDTO{ID: r.ID, Name: r.Name, IsPrivate: r.IsPrivate, CreatedAt: r.CreatedAt, Participants: participants})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser 由管理员显式指定角色创建用户,不走首用户推断。
func (s *AdminService) CreateUser(username, password, role string) error {
	if role != models.RoleAdmin {
		role = models.RoleNormal
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		return tx.Create(&models.User{Username: username, PasswordHash: hash, Role: role}).Error
	})
}

// DeleteUser 删除用户及其派生行:令牌、好友请求、房间成员关系。
func (s *AdminService) DeleteUser(userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.AuthToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("from_user_id = ? OR to_user_id = ?", userID, userID).Delete(&models.FriendRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.RoomParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}

// DeleteRoom 删除房间并级联清理消息与成员关系。
func (s *AdminService) DeleteRoom(roomID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, roomID).Error
	})
}
