package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/pkg/event"
)

var (
	// ErrQueueFull は接続の送信キューが一杯でイベントを捨てたことを表す。
	ErrQueueFull = errors.New("送信キューが一杯です")
	// ErrConnectionClosed は切断済みの接続に送ろうとしたことを表す。
	ErrConnectionClosed = errors.New("接続は切断されています")
	// ErrNoSubscribers は配信先の接続が1つもないことを表す。
	ErrNoSubscribers = errors.New("配信先の接続がありません")
)

// DefaultQueueSize は接続ごとの送信キューの既定の長さ。
const DefaultQueueSize = 64

// ProjectGroup はプロジェクトの配信グループ名を返す。
func ProjectGroup(projectID string) string {
	return "project-" + projectID
}

// UserGroup はユーザーの配信グループ名を返す。
func UserGroup(userID string) string {
	return "user-" + userID
}

// Conn はHubに登録された1本のライブ接続。
type Conn struct {
	id     string
	userID string
	send   chan *event.Event
	done   chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	groups map[string]struct{}
}

// ID は接続IDを返す。
func (c *Conn) ID() string { return c.id }

// UserID は接続を認証したユーザーのIDを返す。
func (c *Conn) UserID() string { return c.userID }

// Events は送信キューを返す。
func (c *Conn) Events() <-chan *event.Event { return c.send }

// Done は接続が閉じられると閉じるチャネルを返す。
func (c *Conn) Done() <-chan struct{} { return c.done }

// enqueue はイベントを送信キューに積む。ブロックはしない。
func (c *Conn) enqueue(ev *event.Event) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) addGroup(name string) {
	c.mu.Lock()
	c.groups[name] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) removeGroup(name string) {
	c.mu.Lock()
	delete(c.groups, name)
	c.mu.Unlock()
}

func (c *Conn) groupNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	return names
}

// group は1つの配信グループ。グループごとにロックを持ち、他のグループとは独立している。
type group struct {
	mu      sync.RWMutex
	members map[string]*Conn
	// dead はHubから取り除かれたことを表す。取り除かれたグループには参加させない。
	dead bool
}

// Hub はライブ接続のレジストリ。
type Hub struct {
	queueSize int
	logger    *slog.Logger

	conns  sync.Map // 接続ID -> *Conn
	groups sync.Map // グループ名 -> *group

	closed atomic.Bool
}

// NewHub は新しいHubを生成する。queueSizeが0以下の場合は既定値を使う。
func NewHub(queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{queueSize: queueSize, logger: logger}
}

// Register はユーザーの新しい接続を登録し、ユーザーのグループに参加させる。
// Close後に登録した接続は閉じた状態で返る。
func (h *Hub) Register(userID string) *Conn {
	c := &Conn{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan *event.Event, h.queueSize),
		done:   make(chan struct{}),
		groups: make(map[string]struct{}),
	}
	h.conns.Store(c.id, c)
	h.join(UserGroup(userID), c)
	if h.closed.Load() {
		h.Unregister(c)
		return c
	}
	h.logger.Debug("リアルタイム接続を登録しました", "connection_id", c.id, "user_id", userID)
	return c
}

// Unregister は接続を閉じ、参加している全グループから外す。何度呼んでもよい。
func (h *Hub) Unregister(c *Conn) {
	c.close()
	for _, name := range c.groupNames() {
		h.leave(name, c)
	}
	if _, loaded := h.conns.LoadAndDelete(c.id); loaded {
		h.logger.Debug("リアルタイム接続を解除しました", "connection_id", c.id, "user_id", c.userID)
	}
}

// JoinProjectGroup は接続をプロジェクトのグループに参加させる。
// 接続は複数のプロジェクトのグループに同時に参加できる。
// 接続が存在しない、またはuserIDの接続でない場合はdomain.ErrNotFoundを返す。
func (h *Hub) JoinProjectGroup(connectionID, userID, projectID string) error {
	c, err := h.owned(connectionID, userID)
	if err != nil {
		return err
	}
	h.join(ProjectGroup(projectID), c)
	return nil
}

// LeaveProjectGroup は接続をプロジェクトのグループから外す。
func (h *Hub) LeaveProjectGroup(connectionID, userID, projectID string) error {
	c, err := h.owned(connectionID, userID)
	if err != nil {
		return err
	}
	h.leave(ProjectGroup(projectID), c)
	return nil
}

// BroadcastToProjectGroup はプロジェクトのグループの全接続にイベントを配信し、配信できた接続数を返す。
func (h *Hub) BroadcastToProjectGroup(projectID string, ev *event.Event) (int, error) {
	return h.publish(ProjectGroup(projectID), ev)
}

// NotifyUser はユーザーの全接続にイベントを配信し、配信できた接続数を返す。
// 接続が1つもない場合はErrNoSubscribersを返す。
func (h *Hub) NotifyUser(userID string, ev *event.Event) (int, error) {
	return h.publish(UserGroup(userID), ev)
}

// Close は全接続を閉じ、以降の登録を拒否する。ストリームを返し終えるのでHTTPサーバーを停止できるようになる。
func (h *Hub) Close() {
	h.closed.Store(true)
	h.conns.Range(func(_, v any) bool {
		h.Unregister(v.(*Conn))
		return true
	})
}

// ConnectionCount は登録中の接続数を返す。
func (h *Hub) ConnectionCount() int {
	n := 0
	h.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) owned(connectionID, userID string) (*Conn, error) {
	v, ok := h.conns.Load(connectionID)
	if !ok {
		return nil, fmt.Errorf("接続 %s: %w", connectionID, domain.ErrNotFound)
	}
	c := v.(*Conn)
	if c.userID != userID {
		return nil, fmt.Errorf("接続 %s: %w", connectionID, domain.ErrNotFound)
	}
	return c, nil
}

// join はcをグループに加える。Unregisterと並行しても閉じた接続がグループに残らないよう、
// 接続側の記録を先に行い、グループのロック内で切断済みかを確かめる。
func (h *Hub) join(name string, c *Conn) {
	c.addGroup(name)
	for {
		v, _ := h.groups.LoadOrStore(name, &group{members: make(map[string]*Conn)})
		g := v.(*group)
		g.mu.Lock()
		if g.dead {
			g.mu.Unlock()
			continue
		}
		if c.closed() {
			g.mu.Unlock()
			c.removeGroup(name)
			return
		}
		g.members[c.id] = c
		g.mu.Unlock()
		return
	}
}

func (h *Hub) leave(name string, c *Conn) {
	c.removeGroup(name)
	v, ok := h.groups.Load(name)
	if !ok {
		return
	}
	g := v.(*group)
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, c.id)
	if len(g.members) == 0 && !g.dead {
		g.dead = true
		h.groups.CompareAndDelete(name, g)
	}
}

func (h *Hub) members(name string) []*Conn {
	v, ok := h.groups.Load(name)
	if !ok {
		return nil
	}
	g := v.(*group)
	g.mu.RLock()
	defer g.mu.RUnlock()
	conns := make([]*Conn, 0, len(g.members))
	for _, c := range g.members {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) publish(name string, ev *event.Event) (int, error) {
	conns := h.members(name)
	if len(conns) == 0 {
		return 0, fmt.Errorf("グループ %s: %w", name, ErrNoSubscribers)
	}
	delivered := 0
	var errs []error
	for _, c := range conns {
		if err := c.enqueue(ev); err != nil {
			errs = append(errs, fmt.Errorf("接続 %s: %w", c.id, err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}
