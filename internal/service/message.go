package service

import (
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/models"

	"gorm.io/gorm"
)

// MessageService 封装消息写入与历史查询。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// MessageDTO 是对外输出的消息数据,字段名与前端约定保持一致。
type MessageDTO struct {
	ID             uint      `json:"id"`
	RoomID         uint      `json:"room_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Create 落库一条消息并返回其投影,供广播复用。
func (s *MessageService) Create(roomID uint, senderUsername, content string) (*MessageDTO, error) {
	msg := models.Message{RoomID: roomID, SenderUsername: senderUsername, Content: content}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &MessageDTO{
		ID:             msg.ID,
		RoomID:         msg.RoomID,
		SenderUsername: msg.SenderUsername,
		Content:        msg.Content,
		Timestamp:      msg.CreatedAt,
	}, nil
}

// History 返回房间的全部消息,按时间升序。
func (s *MessageService) History(roomID uint) ([]MessageDTO, error) {
	var msgs []models.Message
	if err := s.db.Where("room_id = ?", roomID).Order("id asc").Find(&msgs).Error; err != nil {
		return nil, err
	}
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:             m.ID,
			RoomID:         m.RoomID,
			SenderUsername: m.SenderUsername,
			Content:        m.Content,
			Timestamp:      m.CreatedAt,
		})
	}
	return out, nil
}
