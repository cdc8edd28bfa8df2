package ws

import "sync"

// Registry 是进程级房间注册表:房间 ID → 当前已加入的在线成员。
// 纯瞬态结构,进程重启后从零重建,与持久参与者表相互独立。
type Registry struct {
	mu    sync.Mutex
	rooms map[uint]map[uint]*Client
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uint]map[uint]*Client)}
}

// Join 幂等地把成员加入房间,同一用户重复加入时覆盖其连接。
func (r *Registry) Join(roomID, userID uint, c *Client) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[uint]*Client)
		r.rooms[roomID] = room
	}
	room[userID] = c
	r.mu.Unlock()
}

// Leave 把成员移出房间,仅当条目仍指向该连接时生效,
// 被顶替的旧会话清理时不会把新会话踢出房间。成员清空时整个房间条目一并删除。
func (r *Registry) Leave(roomID, userID uint, c *Client) {
	r.mu.Lock()
	if room, ok := r.rooms[roomID]; ok && room[userID] == c {
		delete(room, userID)
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()
}

// MembersOf 返回房间当前在线成员的用户 ID 快照。
func (r *Registry) MembersOf(roomID uint) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]uint, 0, len(room))
	for uid := range room {
		out = append(out, uid)
	}
	return out
}

// Broadcast 把帧投递给房间内除 exclude(0 表示不排除)外的全部成员。
// 持锁期间只拷贝目标列表,发送在释放锁之后进行;
// 单个成员投递失败只影响该成员,不中断其余投递。
func (r *Registry) Broadcast(roomID uint, f frame, exclude uint) {
	var targets []*Client
	r.mu.Lock()
	if room, ok := r.rooms[roomID]; ok {
		targets = make([]*Client, 0, len(room))
		for uid, c := range room {
			if uid != exclude {
				targets = append(targets, c)
			}
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		c.trySend(f)
	}
}
