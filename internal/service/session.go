package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"project-oversight-be/internal/broadcast"
	"project-oversight-be/internal/service/dto"
	"project-oversight-be/internal/service/game"
	"project-oversight-be/internal/store"
)

// 终局会话保留一段时间供客户端拉取终局快照，之后由清理循环回收
const finishedSessionTTL = 10 * time.Minute

// SessionService 管理全部会话：
// 每个会话一个状态机协程，服务层只负责寻址、创建与回收
type SessionService struct {
	state *sessionServiceState

	hub   *broadcast.Hub
	store store.Store
	gen   game.ContentSource
	rules game.Rules
}

type sessionServiceState struct {
	mu sync.RWMutex

	// 均为从会话 ID 到实体的映射
	machines map[string]*game.GameMachine
	doneChs  map[string]chan struct{}

	cleanUpDone chan struct{}
}

func NewSessionService(
	hub *broadcast.Hub,
	st store.Store,
	gen game.ContentSource,
	rules game.Rules,
) *SessionService {
	state := &sessionServiceState{
		machines:    make(map[string]*game.GameMachine),
		doneChs:     make(map[string]chan struct{}),
		cleanUpDone: make(chan struct{}),
	}

	svc := &SessionService{
		state: state,
		hub:   hub,
		store: st,
		gen:   gen,
		rules: rules,
	}

	// 启动一个协程定期回收终局与废弃的会话
	go svc.startCleanupLoop()

	return svc
}

func (ss *SessionService) startCleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ss.state.cleanUpDone:
			return

		case <-ticker.C:
			ss.state.mu.Lock()

			for sessionID, machine := range ss.state.machines {
				// TTL 从终局时刻起算，长局不会在终局瞬间被回收
				if !machine.IsFinished() || time.Since(machine.FinishedAt()) < finishedSessionTTL {
					continue
				}

				zap.S().Infof("会话 %s 已终局，开始回收", sessionID)

				close(ss.state.doneChs[sessionID])
				delete(ss.state.doneChs, sessionID)
				delete(ss.state.machines, sessionID)

				ss.hub.DropSession(sessionID)
			}

			ss.state.mu.Unlock()
		}
	}
}

func (ss *SessionService) Close() {
	close(ss.state.cleanUpDone)

	ss.state.mu.Lock()
	defer ss.state.mu.Unlock()

	for sessionID := range ss.state.machines {
		close(ss.state.doneChs[sessionID])
		delete(ss.state.doneChs, sessionID)
		delete(ss.state.machines, sessionID)
		ss.hub.DropSession(sessionID)
	}
}

// CreateSession 创建新会话：分配查重后的会话码，宿主作为首名玩家入册
func (ss *SessionService) CreateSession(req dto.CreateSessionRequest) (dto.CreateSessionResponse, error) {
	hostName := strings.TrimSpace(req.HostName)
	if hostName == "" {
		return dto.CreateSessionResponse{}, errors.New("宿主名称不能为空")
	}

	sessionID, err := ss.allocateSessionCode()
	if err != nil {
		return dto.CreateSessionResponse{}, err
	}

	hostID := game.GenShortID()

	doneCh := make(chan struct{})
	machine := game.NewGameMachine(
		sessionID,
		hostID,
		hostName,
		ss.rules,
		ss.hub,
		ss.store,
		ss.gen,
		doneCh,
	)

	ss.state.mu.Lock()
	ss.state.machines[sessionID] = machine
	ss.state.doneChs[sessionID] = doneCh
	ss.state.mu.Unlock()

	go machine.Start()

	zap.S().Infof("会话 %s 由 %s 创建", sessionID, hostName)

	return dto.CreateSessionResponse{
		SessionID: sessionID,
		HostID:    hostID,
		Host: game.Player{
			ID:       hostID,
			Name:     hostName,
			IsActive: true,
		},
	}, nil
}

// allocateSessionCode 生成并查重会话码；持久层不可用时返回 StoreUnavailable
func (ss *SessionService) allocateSessionCode() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for attempt := 0; attempt < 5; attempt++ {
		code := game.GenSessionCode()

		ss.state.mu.RLock()
		_, taken := ss.state.machines[code]
		ss.state.mu.RUnlock()

		if taken {
			continue
		}

		inUse, err := ss.store.CodeInUse(ctx, code)
		if err != nil {
			zap.S().Warnf("会话码查重失败: %v", err)
			return "", game.ErrStoreUnavailable
		}

		if !inUse {
			return code, nil
		}
	}

	return "", errors.New("会话码分配失败，请重试")
}

// Attach 返回指定会话的请求通道，供 WS 层注入客户端请求
func (ss *SessionService) Attach(sessionID string) (chan game.RequestWrapper, error) {
	ss.state.mu.RLock()
	defer ss.state.mu.RUnlock()

	machine, ok := ss.state.machines[strings.ToUpper(strings.TrimSpace(sessionID))]
	if !ok {
		return nil, game.ErrSessionNotFound
	}

	return machine.GetReqCh(), nil
}

// GetState 同步查询会话完整快照
func (ss *SessionService) GetState(sessionID string) (*game.Snapshot, error) {
	reqCh, err := ss.Attach(sessionID)
	if err != nil {
		return nil, err
	}

	replyCh := make(chan *game.Snapshot, 1)

	req := game.RequestWrapper{
		ReqType:    game.REQ_GET_STATE,
		NativeData: &game.GetStateRequest{ReplyCh: replyCh},
	}

	reqTimer := time.NewTimer(3 * time.Second)
	defer reqTimer.Stop()

	select {
	case reqCh <- req:
	case <-reqTimer.C:
		zap.S().Warnf("会话 %s 无法及时处理状态查询", sessionID)
		return nil, game.ErrPhaseBusy
	}

	resTimer := time.NewTimer(3 * time.Second)
	defer resTimer.Stop()

	select {
	case snap := <-replyCh:
		return snap, nil
	case <-resTimer.C:
		zap.S().Warnf("会话 %s 状态查询响应超时", sessionID)
		return nil, game.ErrPhaseBusy
	}
}

// Subscribe 订阅会话的快照流
func (ss *SessionService) Subscribe(sessionID string) (*broadcast.Subscriber, error) {
	if _, err := ss.Attach(sessionID); err != nil {
		return nil, err
	}

	return ss.hub.Subscribe(strings.ToUpper(strings.TrimSpace(sessionID))), nil
}

// Unsubscribe 取消快照订阅
func (ss *SessionService) Unsubscribe(sub *broadcast.Subscriber) {
	ss.hub.Unsubscribe(sub)
}
