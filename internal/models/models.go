package models

import "time"

// 角色常量,首个注册用户自动成为 admin。
const (
	RoleNormal = "normal"
	RoleAdmin  = "admin"
)

// 好友请求状态,pending 只会走向两个终态之一。
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:16;not null;default:normal"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room 持久化房间,私聊房间 IsPrivate 为 true 且恰有两名参与者。
type Room struct {
	ID        uint    `gorm:"primaryKey"`
	Name      *string `gorm:"size:128"`
	IsPrivate bool    `gorm:"not null;default:true"`
	CreatedAt time.Time
}

// RoomParticipant 房间的持久成员关系,与内存注册表中的在线成员相互独立。
type RoomParticipant struct {
	RoomID uint `gorm:"primaryKey;autoIncrement:false"`
	UserID uint `gorm:"primaryKey;autoIncrement:false"`
}

type Message struct {
	ID             uint   `gorm:"primaryKey"`
	RoomID         uint   `gorm:"index:idx_msg_room_id;not null"`
	SenderUsername string `gorm:"size:64;not null"`
	Content        string `gorm:"type:text;not null"`
	CreatedAt      time.Time
}

// FriendRequest 每个有序 (from,to) 对至多一行,由唯一索引保证。
type FriendRequest struct {
	ID         uint   `gorm:"primaryKey"`
	FromUserID uint   `gorm:"uniqueIndex:idx_fr_pair;not null"`
	ToUserID   uint   `gorm:"uniqueIndex:idx_fr_pair;not null"`
	Status     string `gorm:"size:16;not null;default:pending"`
	CreatedAt  time.Time
}

// AuthToken 不透明令牌,支持断线后免密码重连。
type AuthToken struct {
	Token     string `gorm:"primaryKey;size:64"`
	UserID    uint   `gorm:"index;not null"`
	CreatedAt time.Time
}
