package ws

import "sync"

// Presence 是进程级在线用户目录:用户 ID → 其连接。
// 判断"某人是否在线、怎么把消息递给他"以这里为唯一事实来源。
type Presence struct {
	mu    sync.RWMutex
	users map[uint]*Client
}

func NewPresence() *Presence {
	return &Presence{users: make(map[uint]*Client)}
}

// Register 登记一个已认证连接。同一用户再次登记时直接覆盖旧条目
// (last-writer-wins,单会话策略)。
func (p *Presence) Register(userID uint, c *Client) {
	p.mu.Lock()
	p.users[userID] = c
	p.mu.Unlock()
}

// Unregister 无条件移除用户的在线条目。
func (p *Presence) Unregister(userID uint) {
	p.mu.Lock()
	delete(p.users, userID)
	p.mu.Unlock()
}

// release 仅当条目仍指向该连接时才移除,
// 被顶替的旧会话清理时不会把新会话踢下线。
func (p *Presence) release(userID uint, c *Client) {
	p.mu.Lock()
	if p.users[userID] == c {
		delete(p.users, userID)
	}
	p.mu.Unlock()
}

// Lookup 返回用户的在线连接。
func (p *Presence) Lookup(userID uint) (*Client, bool) {
	p.mu.RLock()
	c, ok := p.users[userID]
	p.mu.RUnlock()
	return c, ok
}

func (p *Presence) IsOnline(userID uint) bool {
	p.mu.RLock()
	_, ok := p.users[userID]
	p.mu.RUnlock()
	return ok
}

// Clients 返回当前全部在线连接的快照,优雅停服时用于统一断开。
func (p *Presence) Clients() []*Client {
	p.mu.RLock()
	out := make([]*Client, 0, len(p.users))
	for _, c := range p.users {
		out = append(out, c)
	}
	p.mu.RUnlock()
	return out
}
