package service

import (
	"errors"
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FriendService 负责好友关系与私聊房间的所有事务性操作。
// 多步操作都在单个事务内完成,查找与创建共用同一套逻辑。
type FriendService struct {
	db *gorm.DB
}

func NewFriendService(db *gorm.DB) *FriendService {
	return &FriendService{db: db}
}

// FriendRequestInfo 是带发送者用户名的好友请求投影。
type FriendRequestInfo struct {
	ID           uint      `json:"id"`
	FromUserID   uint      `json:"from_user_id"`
	FromUsername string    `json:"from_username"`
	ToUserID     uint      `json:"to_user_id"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoomInfo 是用户聊天列表里的一项:房间加全部持久参与者。
type RoomInfo struct {
	RoomID       uint     `json:"room_id"`
	Name         *string  `json:"name"`
	Participants []string `json:"participants"`
}

// GetOrCreatePrivateRoom 查找或创建两名用户之间唯一的私聊房间。
// 整个 find-or-create 在一个事务里执行;并发首次调用仍可能各自建房,
// 这是 READ COMMITTED 下已知的竞态,见 DESIGN.md。
func (s *FriendService) GetOrCreatePrivateRoom(userA, userB uint) (uint, error) {
	var roomID uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		roomID, err = getOrCreatePrivateRoom(tx, userA, userB)
		return err
	})
	return roomID, err
}

// getOrCreatePrivateRoom 在调用方提供的事务句柄上执行,
// 供 GetOrCreatePrivateRoom 与 Accept 复用。
func getOrCreatePrivateRoom(tx *gorm.DB, userA, userB uint) (uint, error) {
	var ids []uint
	err := tx.Raw(`SELECT rp1.room_id
		FROM room_participants rp1
		JOIN room_participants rp2 ON rp1.room_id = rp2.room_id
		JOIN rooms r ON rp1.room_id = r.id
		WHERE rp1.user_id = ? AND rp2.user_id = ? AND r.is_private`, userA, userB).Scan(&ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		return ids[0], nil
	}
	room := models.Room{IsPrivate: true}
	if err := tx.Create(&room).Error; err != nil {
		return 0, err
	}
	participants := []models.RoomParticipant{
		{RoomID: room.ID, UserID: userA},
		{RoomID: room.ID, UserID: userB},
	}
	if err := tx.Create(&participants).Error; err != nil {
		return 0, err
	}
	return room.ID, nil
}

// SendRequest 发送好友请求:先按唯一约束 insert-or-ignore,
// 再读回权威行,整个流程在一个事务内。调用方根据返回的 Status 分支。
func (s *FriendService) SendRequest(fromUserID uint, toUsername string) (*FriendRequestInfo, error) {
	var info FriendRequestInfo
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := tx.Where("username = ?", toUsername).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if target.ID == fromUserID {
			return ErrSelfRequest
		}

		req := models.FriendRequest{FromUserID: fromUserID, ToUserID: target.ID, Status: models.RequestPending}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&req).Error; err != nil {
			return err
		}

		return tx.Raw(`SELECT r.id, r.from_user_id, u.username AS from_username, r.to_user_id, r.status, r.created_at AS timestamp
			FROM friend_requests r
			JOIN users u ON r.from_user_id = u.id
			WHERE r.from_user_id = ? AND r.to_user_id = ?`, fromUserID, target.ID).Scan(&info).Error
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Accept 接受一个待处理请求:标记 accepted 并确保双方拥有唯一私聊房间。
// 返回原始发送者,供调用方刷新其在线视图。
func (s *FriendService) Accept(requestID uint) (*models.User, error) {
	var sender models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var req models.FriendRequest
		if err := tx.Where("id = ? AND status = ?", requestID, models.RequestPending).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotPending
			}
			return err
		}
		if err := tx.Model(&models.FriendRequest{}).Where("id = ?", req.ID).
			Update("status", models.RequestAccepted).Error; err != nil {
			return err
		}
		if _, err := getOrCreatePrivateRoom(tx, req.FromUserID, req.ToUserID); err != nil {
			return err
		}
		return tx.First(&sender, req.FromUserID).Error
	})
	if err != nil {
		return nil, err
	}
	return &sender, nil
}

// Reject 把待处理请求标记为 rejected。行不存在或已处理时返回 (nil, nil)。
func (s *FriendService) Reject(requestID uint) (*models.User, error) {
	var sender models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var req models.FriendRequest
		if err := tx.Where("id = ? AND status = ?", requestID, models.RequestPending).First(&req).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.FriendRequest{}).Where("id = ?", req.ID).
			Update("status", models.RequestRejected).Error; err != nil {
			return err
		}
		return tx.First(&sender, req.FromUserID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sender, nil
}

// DeleteFriend 删除好友关系:私聊房间连同消息、参与者一并删除,
// 再删掉双向任一方向的 accepted 请求行。没有这段关系时为空操作。
func (s *FriendService) DeleteFriend(userA, userB uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Raw(`SELECT rp1.room_id
			FROM room_participants rp1
			JOIN room_participants rp2 ON rp1.room_id = rp2.room_id
			JOIN rooms r ON rp1.room_id = r.id
			WHERE rp1.user_id = ? AND rp2.user_id = ? AND r.is_private`, userA, userB).Scan(&ids).Error
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			roomID := ids[0]
			if err := tx.Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomParticipant{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Room{}, roomID).Error; err != nil {
				return err
			}
		}
		return tx.Where(`status = ? AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))`,
			models.RequestAccepted, userA, userB, userB, userA).
			Delete(&models.FriendRequest{}).Error
	})
}

// Friends 返回用户的全部好友(accepted 请求的对端用户),单条 JOIN 查询。
func (s *FriendService) Friends(userID uint) ([]models.User, error) {
	users := []models.User{}
	err := s.db.Raw(`SELECT u.*
		FROM users u
		JOIN friend_requests fr
		  ON u.id = CASE WHEN fr.from_user_id = ? THEN fr.to_user_id ELSE fr.from_user_id END
		WHERE (fr.from_user_id = ? OR fr.to_user_id = ?) AND fr.status = ?`,
		userID, userID, userID, models.RequestAccepted).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Rooms 返回用户所在的全部持久房间及各房间参与者,单事务内读取保证快照一致。
func (s *FriendService) Rooms(userID uint) ([]RoomInfo, error) {
	out := []RoomInfo{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		type roomRow struct {
			ID   uint
			Name *string
		}
		var rows []roomRow
		err := tx.Raw(`SELECT r.id, r.name
			FROM rooms r
			JOIN room_participants rp ON r.id = rp.room_id
			WHERE rp.user_id = ? ORDER BY r.created_at DESC`, userID).Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, row := range rows {
			var participants []string
			err := tx.Raw(`SELECT u.username
				FROM users u
				JOIN room_participants rp ON u.id = rp.user_id
				WHERE rp.room_id = ? ORDER BY u.username`, row.ID).Scan(&participants).Error
			if err != nil {
				return err
			}
			out = append(out, RoomInfo{RoomID: row.ID, Name: row.Name, Participants: participants})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pending 返回发给用户且仍处于 pending 的请求列表。
func (s *FriendService) Pending(userID uint) ([]FriendRequestInfo, error) {
	out := []FriendRequestInfo{}
	err := s.db.Raw(`SELECT r.id, r.from_user_id, u.username AS from_username, r.to_user_id, r.status, r.created_at AS timestamp
		FROM friend_requests r
		JOIN users u ON r.from_user_id = u.id
		WHERE r.to_user_id = ? AND r.status = ?`, userID, models.RequestPending).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
