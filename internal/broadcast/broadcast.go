// Package broadcast 将权威快照扇出给同一会话的所有订阅者
//
// 投递保证：订阅者收到序号 N 的快照后，不会再收到序号小于等于 N 的快照；
// 每个订阅者只保留最新一份未消费的快照（latest-wins 信箱），
// 因此慢客户端最终收敛到最新状态，发布方永远不会被阻塞
package broadcast

import (
	"sync"

	"go.uber.org/zap"
)

// Message 是一次快照投递，Seq 由会话状态机单调递增分配
type Message struct {
	Seq  uint64
	Data any
}

type Subscriber struct {
	sessionID string

	mu      sync.Mutex
	ch      chan Message
	lastSeq uint64
	closed  bool
}

// C 返回接收通道；订阅被取消后通道会被关闭
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// deliver 执行单调投递：丢弃过期快照，信箱满时先腾出旧的
func (s *Subscriber) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || msg.Seq <= s.lastSeq {
		return
	}

	s.lastSeq = msg.Seq

	for {
		select {
		case s.ch <- msg:
			return
		default:
		}

		// 信箱已满：丢掉未消费的旧快照，换上新的
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}

// Hub 按会话管理订阅者集合
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*Subscriber]struct{}),
	}
}

func (h *Hub) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		sessionID: sessionID,
		ch:        make(chan Message, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Subscriber]struct{})
	}

	h.sessions[sessionID][sub] = struct{}{}

	zap.L().Debug(
		"新增快照订阅",
		zap.String("session_id", sessionID),
		zap.Int("subscribers", len(h.sessions[sessionID])),
	)

	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()

	if subs, ok := h.sessions[sub.sessionID]; ok {
		delete(subs, sub)

		if len(subs) == 0 {
			delete(h.sessions, sub.sessionID)
		}
	}

	h.mu.Unlock()

	sub.close()
}

// Publish 将快照投递给会话的全部订阅者，投递不持有 Hub 锁之外的任何锁
func (h *Hub) Publish(sessionID string, msg Message) {
	h.mu.RLock()

	subs := make([]*Subscriber, 0, len(h.sessions[sessionID]))
	for sub := range h.sessions[sessionID] {
		subs = append(subs, sub)
	}

	h.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(msg)
	}
}

// DropSession 会话销毁时关闭其全部订阅
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()

	subs := h.sessions[sessionID]
	delete(h.sessions, sessionID)

	h.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}
