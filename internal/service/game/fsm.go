package game

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"project-oversight-be/internal/broadcast"
)

// GameMachine 是会话状态机：一个会话一个协程，
// 所有命令经由请求通道串行处理，状态机是权威状态的唯一写者
type GameMachine struct {
	ctx     *GameContext
	handler StageHandler
	// 所有客户端请求汇总的通道
	reqCh chan RequestWrapper
	// 结束通道，用于通知状态机退出事件循环
	doneCh chan struct{}

	createdAt time.Time
	// 进入终局的时刻（UnixNano），清理循环跨协程读取
	finishedAt atomic.Int64
}

func NewGameMachine(
	sessionID string,
	hostID string,
	hostName string,
	rules Rules,
	hub *broadcast.Hub,
	store Persister,
	gen ContentSource,
	doneCh chan struct{},
) *GameMachine {
	ctx := &GameContext{
		SessionID: sessionID,
		HostID:    hostID,
		Phase:     STAGE_LOBBY,
		Round:     1,
		IsActive:  true,
		Players:   make(map[string]*Player),
		Votes:     make(map[string]*Ballot),
		Ledger:    NewResourceLedger(rules.Baseline),
		Rules:     rules,
		EvCh:      make(chan RequestWrapper, 64),
		Hub:       hub,
		Store:     store,
		Gen:       gen,
	}

	// 宿主作为第一名玩家直接入册，之后通过 WS 按 ID 重连接入
	ctx.AddPlayer(hostID, hostName, nil)

	gm := &GameMachine{
		ctx:       ctx,
		handler:   NewLobbyStageHandler(),
		reqCh:     make(chan RequestWrapper, 64),
		doneCh:    doneCh,
		createdAt: time.Now(),
	}

	gm.handler.SetOnSwitch(gm.onSwitch)

	return gm
}

func (gm *GameMachine) onSwitch(nextStage string) {
	gm.ctx.Phase = nextStage
}

func (gm *GameMachine) GetReqCh() chan RequestWrapper {
	return gm.reqCh
}

func (gm *GameMachine) SessionID() string {
	return gm.ctx.SessionID
}

func (gm *GameMachine) HostID() string {
	return gm.ctx.HostID
}

func (gm *GameMachine) IsFinished() bool {
	return gm.finishedAt.Load() != 0
}

func (gm *GameMachine) CreatedAt() time.Time {
	return gm.createdAt
}

// FinishedAt 返回进入终局的时刻，未终局时为零值
func (gm *GameMachine) FinishedAt() time.Time {
	n := gm.finishedAt.Load()
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n)
}

func (gm *GameMachine) Start() {
	// 执行初始 handler 的 OnEnter，并提交首个快照
	gm.handler.OnEnter(gm.ctx)
	gm.commit()

	for {
		var req RequestWrapper

		select {
		case req = <-gm.reqCh:
			zap.L().Debug(
				"接收到客户端请求",
				zap.String("session_id", gm.ctx.SessionID),
				zap.String("request_type", req.ReqType),
			)
		case req = <-gm.ctx.EvCh:
			zap.L().Debug(
				"接收到内部事件",
				zap.String("session_id", gm.ctx.SessionID),
				zap.String("event_type", req.ReqType),
			)
		case <-gm.doneCh:
			zap.L().Info(
				"收到退出信号，结束会话状态机",
				zap.String("session_id", gm.ctx.SessionID),
			)

			gm.ctx.ClearTimeout()
			gm.shutdown()

			return
		}

		if err := gm.handler.OnHandle(gm.ctx, req); err != nil {
			zap.L().Debug(
				"处理请求失败",
				zap.String("session_id", gm.ctx.SessionID),
				zap.String("stage", gm.handler.Stage()),
				zap.String("request_type", req.ReqType),
				zap.Error(err),
			)

			gm.respondError(req, err)
		}

		// 阶段切换可能连续发生（例如结算后立刻终局），循环直到收敛
		for gm.ctx.Phase != gm.handler.Stage() {
			gm.switchStage()
			gm.handler.OnEnter(gm.ctx)
			gm.ctx.MarkDirty()
		}

		if gm.ctx.Phase == STAGE_GAME_OVER && gm.finishedAt.Load() == 0 {
			gm.finishedAt.Store(time.Now().UnixNano())
		}

		if gm.ctx.dirty {
			gm.commit()
		}
	}
}

// commit 提交一次权威状态变更：
// 序号递增、构建完整快照、广播给订阅者、镜像到持久层
func (gm *GameMachine) commit() {
	gm.ctx.Seq++
	gm.ctx.dirty = false

	snap := BuildSnapshot(gm.ctx)

	if gm.ctx.Hub != nil {
		gm.ctx.Hub.Publish(gm.ctx.SessionID, broadcast.Message{
			Seq:  snap.Seq,
			Data: snap,
		})
	}

	// 镜像写入放到旁路协程，状态机不等待持久层；
	// 乱序到达由持久层的序号守卫兜住
	go gm.ctx.persistSnapshot(snap)
}

func (gm *GameMachine) switchStage() {
	gm.handler.OnExit(gm.ctx)

	var newHandler StageHandler

	switch gm.ctx.Phase {
	case STAGE_LOBBY:
		newHandler = NewLobbyStageHandler()
	case STAGE_SCENARIO_LOADING:
		newHandler = NewLoadingStageHandler()
	case STAGE_VOTING:
		newHandler = NewVotingStageHandler()
	case STAGE_RESULTS:
		newHandler = NewResultsStageHandler()
	case STAGE_GAME_OVER:
		newHandler = NewGameOverStageHandler()
	default:
		zap.L().Error(
			"未知的游戏阶段",
			zap.String("session_id", gm.ctx.SessionID),
			zap.String("phase", gm.ctx.Phase),
		)
		return
	}

	newHandler.SetOnSwitch(gm.onSwitch)

	gm.handler = newHandler

	zap.L().Info(
		"阶段切换",
		zap.String("session_id", gm.ctx.SessionID),
		zap.String("stage", newHandler.Stage()),
		zap.Int("round", gm.ctx.Round),
	)
}

// respondError 将校验错误单播回请求发起者
// 加入/离开请求在处理器内已经就地回复过，这里跳过
func (gm *GameMachine) respondError(req RequestWrapper, err error) {
	switch req.ReqType {
	case REQ_JOIN_SESSION, REQ_LEAVE_SESSION, REQ_GET_STATE:
		return
	case REQ_TIMEOUT, REQ_SCENARIO_READY, REQ_OUTCOME_READY:
		return
	}

	var playerID string

	if r := TryUnwrapSetReadyRequest(req); r != nil {
		playerID = r.PlayerID
	} else if r := TryUnwrapStartGameRequest(req); r != nil {
		playerID = r.PlayerID
	} else if r := TryUnwrapCastVoteRequest(req); r != nil {
		playerID = r.PlayerID
	} else if r := TryUnwrapAdvanceRoundRequest(req); r != nil {
		playerID = r.PlayerID
	}

	if playerID == "" {
		return
	}

	gm.ctx.UnicastResp(playerID, WrapErrResponse(err))
}

// shutdown 停止向玩家通道发送
// 通道归连接层所有，状态机不关闭它们；
// 连接层通过订阅通道被关闭感知会话销毁
func (gm *GameMachine) shutdown() {
	for _, p := range gm.ctx.Players {
		p.RespCh = nil
	}
}
