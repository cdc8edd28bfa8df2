package service

import (
	"errors"
	"testing"

	"github.com/ECeternalcat/simple-talk-client/internal/models"
)

func TestAdminCreateUserRole(t *testing.T) {
	gdb := testDB(t)
	admin := NewAdminService(gdb)

	tests := []struct {
		name     string
		role     string
		wantRole string
	}{
		{"admin role kept", models.RoleAdmin, models.RoleAdmin},
		{"normal role kept", models.RoleNormal, models.RoleNormal},
		{"unknown role falls back to normal", "superuser", models.RoleNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			username := uniqueName("adm")
			if err := admin.CreateUser(username, "password123", tt.role); err != nil {
				t.Fatalf("CreateUser() error = %v", err)
			}
			var u models.User
			if err := gdb.Where("username = ?", username).First(&u).Error; err != nil {
				t.Fatalf("load user: %v", err)
			}
			if u.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", u.Role, tt.wantRole)
			}
		})
	}

	name := uniqueName("admdup")
	if err := admin.CreateUser(name, "password123", models.RoleNormal); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := admin.CreateUser(name, "password123", models.RoleNormal); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrUsernameTaken", err)
	}
}

func TestAdminDeleteUserCascade(t *testing.T) {
	gdb := testDB(t)
	admin := NewAdminService(gdb)
	users := NewUserService(gdb)
	friends := NewFriendService(gdb)
	a, b := registerPair(t, gdb)

	if _, err := users.IssueToken(a.ID); err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	info, err := friends.SendRequest(a.ID, b.Username)
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if _, err := friends.Accept(info.ID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	roomID, err := friends.GetOrCreatePrivateRoom(a.ID, b.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePrivateRoom() error = %v", err)
	}

	if err := admin.DeleteUser(a.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	var count int64
	gdb.Model(&models.User{}).Where("id = ?", a.ID).Count(&count)
	if count != 0 {
		t.Error("user row survived DeleteUser()")
	}
	gdb.Model(&models.AuthToken{}).Where("user_id = ?", a.ID).Count(&count)
	if count != 0 {
		t.Error("auth tokens survived DeleteUser()")
	}
	gdb.Model(&models.FriendRequest{}).Where("from_user_id = ? OR to_user_id = ?", a.ID, a.ID).Count(&count)
	if count != 0 {
		t.Error("friend requests survived DeleteUser()")
	}
	gdb.Model(&models.RoomParticipant{}).Where("user_id = ?", a.ID).Count(&count)
	if count != 0 {
		t.Error("participant rows survived DeleteUser()")
	}
	// The room itself is left for admin_delete_room.
	gdb.Model(&models.Room{}).Where("id = ?", roomID).Count(&count)
	if count != 1 {
		t.Error("room was removed by DeleteUser()")
	}
}

func TestAdminDeleteRoomCascade(t *testing.T) {
	gdb := testDB(t)
	admin := NewAdminService(gdb)
	friends := NewFriendService(gdb)
	messages := NewMessageService(gdb)
	a, b := registerPair(t, gdb)

	roomID, err := friends.GetOrCreatePrivateRoom(a.ID, b.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePrivateRoom() error = %v", err)
	}
	if _, err := messages.Create(roomID, a.Username, "hello"); err != nil {
		t.Fatalf("Create message: %v", err)
	}

	if err := admin.DeleteRoom(roomID); err != nil {
		t.Fatalf("DeleteRoom() error = %v", err)
	}

	var count int64
	gdb.Model(&models.Room{}).Where("id = ?", roomID).Count(&count)
	if count != 0 {
		t.Error("room survived DeleteRoom()")
	}
	gdb.Model(&models.Message{}).Where("room_id = ?", roomID).Count(&count)
	if count != 0 {
		t.Error("messages survived DeleteRoom()")
	}
	gdb.Model(&models.RoomParticipant{}).Where("room_id = ?", roomID).Count(&count)
	if count != 0 {
		t.Error("participant rows survived DeleteRoom()")
	}
}

func TestAdminListings(t *testing.T) {
	gdb := testDB(t)
	admin := NewAdminService(gdb)
	friends := NewFriendService(gdb)
	a, b := registerPair(t, gdb)

	roomID, err := friends.GetOrCreatePrivateRoom(a.ID, b.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePrivateRoom() error = %v", err)
	}

	all, err := admin.AllUsers()
	if err != nil {
		t.Fatalf("AllUsers() error = %v", err)
	}
	found := 0
	for _, u := range all {
		if u.ID == a.ID || u.ID == b.ID {
			found++
		}
	}
	if found != 2 {
		t.Errorf("AllUsers() found %d of the pair, want 2", found)
	}

	rooms, err := admin.AllRooms()
	if err != nil {
		t.Fatalf("AllRooms() error = %v", err)
	}
	var got *AdminRoomDTO
	for i := range rooms {
		if rooms[i].ID == roomID {
			got = &rooms[i]
		}
	}
	if got == nil {
		t.Fatal("AllRooms() missing the private room")
	}
	if !got.IsPrivate || len(got.Participants) != 2 {
		t.Errorf("room listing = %+v, want private with 2 participants", got)
	}
}
