package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"project-oversight-be/internal/generator"
)

// 一局游戏分为 5 个阶段：
// 1. 大厅阶段（Lobby）：玩家加入会话、切换就绪，等待宿主开始
// 2. 剧本加载阶段（ScenarioLoading）：向生成服务请求本轮危机剧本
// 3. 投票阶段（Voting）：收集选票，全员投票或倒计时到期后结算
// 4. 结算阶段（Results）：计票、生成结算叙事、应用资源增减与淘汰
// 5. 终局阶段（GameOver）：记录终局原因，供客户端展示
const (
	STAGE_LOBBY            = "Lobby"
	STAGE_SCENARIO_LOADING = "ScenarioLoading"
	STAGE_VOTING           = "Voting"
	STAGE_RESULTS          = "Results"
	STAGE_GAME_OVER        = "GameOver"
)

// 终局原因
const (
	END_ROUNDS_EXHAUSTED   = "rounds_exhausted"
	END_ELIMINATION        = "elimination"
	END_RESOURCE_DEPLETION = "resource_depletion"
	END_ABANDONED          = "abandoned"
)

type StageHandler interface {
	Stage() string

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, req RequestWrapper) error
	OnExit(ctx *GameContext)

	SetOnSwitch(func(nextStage string))
}

// handleCommon 处理所有阶段都接受的请求：状态查询与离开
// 返回 true 表示请求已被消费
func handleCommon(ctx *GameContext, req RequestWrapper) (bool, error) {
	if r := TryUnwrapGetStateRequest(req); r != nil {
		snap := BuildSnapshot(ctx)

		select {
		case r.ReplyCh <- snap:
		default:
			zap.L().Warn(
				"状态查询回复失败：回复通道无人接收",
				zap.String("session_id", ctx.SessionID),
			)
		}

		return true, nil
	}

	if r := TryUnwrapLeaveSessionRequest(req); r != nil {
		onPlayerLeave(ctx, r)
		return true, nil
	}

	return false, nil
}

// onPlayerLeave 软删除玩家；最后一名在席玩家离开时会话整体作废
func onPlayerLeave(ctx *GameContext, req *LeaveSessionRequest) {
	player, exists := ctx.Players[req.PlayerID]
	if !exists {
		SendResp(req.RespCh, WrapErrResponse(ErrPlayerNotFound))
		return
	}

	// 通道不匹配说明该连接已被重连顶替，只送走旧连接，不动玩家状态
	if req.RespCh != nil && player.RespCh != req.RespCh {
		zap.L().Info(
			"旧连接退出（已被重连顶替）",
			zap.String("session_id", ctx.SessionID),
			zap.String("player_id", req.PlayerID),
		)

		SendResp(req.RespCh, WrapResponse(
			RESP_LEAVE_SESSION,
			LeaveSessionResponse{
				LeftPlayerID:   player.ID,
				LeftPlayerName: player.Name,
			},
		))

		return
	}

	leaveResp := WrapResponse(
		RESP_LEAVE_SESSION,
		LeaveSessionResponse{
			LeftPlayerID:   player.ID,
			LeftPlayerName: player.Name,
		},
	)

	SendResp(player.RespCh, leaveResp)

	// 通道生命周期归连接层所有，连接层可能并发发送，
	// 状态机只停止引用，绝不关闭
	player.RespCh = nil

	ctx.SoftRemove(req.PlayerID)
	ctx.MarkDirty()

	zap.L().Info(
		"玩家离开会话",
		zap.String("session_id", ctx.SessionID),
		zap.String("player_id", req.PlayerID),
		zap.String("player_name", player.Name),
	)

	if ctx.CountActive() == 0 {
		// 空会话直接终局；onSwitch 不可用时由状态机按 Phase 差异切换
		ctx.IsActive = false
		ctx.EndReason = END_ABANDONED
		ctx.Phase = STAGE_GAME_OVER
		return
	}

	// 投票阶段有人离开后，剩余玩家可能已经全部投完
	if ctx.Phase == STAGE_VOTING && ctx.AllVoted() {
		ctx.Phase = STAGE_RESULTS
	}
}

// handleReconnect 按 ID 重连：任何阶段都允许，替换响应通道并补发私有信息
// 返回 true 表示该加入请求是一次重连
func handleReconnect(ctx *GameContext, req *JoinSessionRequest) bool {
	player, exists := ctx.Players[req.PlayerID]
	if !exists {
		return false
	}

	// 旧通道留给旧连接层自行回收；旧连接断开时携带旧通道的
	// 退出请求会走通道不匹配分支，不影响玩家状态
	player.RespCh = req.RespCh
	player.IsActive = true

	SendResp(req.RespCh, WrapResponse(
		RESP_JOIN_SESSION,
		JoinSessionResponse{
			SessionID: ctx.SessionID,
			HostID:    ctx.HostID,
			Joiner:    *player,
			Incentive: player.SecretIncentive,
		},
	))

	ctx.MarkDirty()

	zap.L().Info(
		"玩家按 ID 重连",
		zap.String("session_id", ctx.SessionID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
	)

	return true
}

// 大厅阶段处理器
type lobbyStageHandler struct {
	onSwitch func(string)
}

func NewLobbyStageHandler() *lobbyStageHandler {
	return &lobbyStageHandler{}
}

func (lsh *lobbyStageHandler) Stage() string {
	return STAGE_LOBBY
}

func (lsh *lobbyStageHandler) OnEnter(ctx *GameContext) {
	ctx.Phase = STAGE_LOBBY
}

func (lsh *lobbyStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := handleCommon(ctx, req); handled {
		return err
	}

	if jreq := TryUnwrapJoinSessionRequest(req); jreq != nil {
		if jreq.PlayerID != "" && handleReconnect(ctx, jreq) {
			return nil
		}

		if ctx.CountActive() >= MAX_PLAYERS {
			SendResp(jreq.RespCh, WrapErrResponse(ErrSessionFull))
			return ErrSessionFull
		}

		playerID := jreq.PlayerID
		if playerID == "" {
			playerID = GenShortID()
		}

		player := ctx.AddPlayer(playerID, jreq.PlayerName, jreq.RespCh)

		SendResp(jreq.RespCh, WrapResponse(
			RESP_JOIN_SESSION,
			JoinSessionResponse{
				SessionID: ctx.SessionID,
				HostID:    ctx.HostID,
				Joiner:    *player,
				Incentive: player.SecretIncentive,
			},
		))

		ctx.MarkDirty()

		zap.L().Info(
			"玩家加入会话",
			zap.String("session_id", ctx.SessionID),
			zap.String("player_id", player.ID),
			zap.String("player_name", player.Name),
			zap.String("role", player.Role),
		)

		return nil
	}

	if rreq := TryUnwrapSetReadyRequest(req); rreq != nil {
		player, ok := ctx.Players[rreq.PlayerID]
		if !ok || !player.IsActive {
			return ErrPlayerNotFound
		}

		// 幂等切换：重复设置同一状态不算变更
		if player.IsReady != rreq.IsReady {
			player.IsReady = rreq.IsReady
			ctx.MarkDirty()
		}

		ctx.UnicastResp(rreq.PlayerID, WrapResponse(RESP_ACK, AckResponse{Action: REQ_SET_READY}))

		return nil
	}

	if sreq := TryUnwrapStartGameRequest(req); sreq != nil {
		if sreq.PlayerID != ctx.HostID {
			return ErrNotHost
		}

		if ctx.CountActive() < 2 {
			return ErrNotEnoughPlayers
		}

		if ctx.Rules.RequireAllReady && !ctx.AllReady() {
			return ErrPlayersNotReady
		}

		ctx.UnicastResp(sreq.PlayerID, WrapResponse(RESP_ACK, AckResponse{Action: REQ_START_GAME}))

		lsh.onSwitch(STAGE_SCENARIO_LOADING)

		return nil
	}

	// 大厅阶段的超时事件都是过期残留，直接忽略
	if TryUnwrapTimeoutEvent(req) != nil {
		return nil
	}

	return ErrInvalidPhase
}

func (lsh *lobbyStageHandler) OnExit(ctx *GameContext) {
}

func (lsh *lobbyStageHandler) SetOnSwitch(onSwitch func(string)) {
	lsh.onSwitch = onSwitch
}

// 剧本加载阶段处理器
// 生成调用在独立协程里执行，状态机继续消费请求，
// 期间到达的命令以 PhaseBusy 拒绝（离开与状态查询除外）
type loadingStageHandler struct {
	onSwitch func(string)
}

func NewLoadingStageHandler() *loadingStageHandler {
	return &loadingStageHandler{}
}

func (lsh *loadingStageHandler) Stage() string {
	return STAGE_SCENARIO_LOADING
}

func (lsh *loadingStageHandler) OnEnter(ctx *GameContext) {
	ctx.Phase = STAGE_SCENARIO_LOADING
	ctx.Scenario = nil
	// 上一轮的计票与结算属于上一轮，新一轮开始即清空
	ctx.LastOutcome = nil
	ctx.LastTally = nil
	ctx.TimerRunning = false
	ctx.ClearRoundFlags()
	ctx.RotateIncentives()

	// 在状态机协程内先取好副本，生成协程不触碰会话状态
	sessCtx := ctx.sessionContext()
	round := ctx.Round
	evCh := ctx.EvCh
	gen := ctx.Gen

	go func() {
		scenario := gen.Scenario(context.Background(), sessCtx)

		ev := RequestWrapper{
			ReqType: REQ_SCENARIO_READY,
			NativeData: &ScenarioReadyEvent{
				Round:    round,
				Scenario: scenario,
			},
		}

		select {
		case evCh <- ev:
		case <-time.After(30 * time.Second):
			zap.L().Warn(
				"剧本就绪事件投递失败：事件通道长期拥塞",
				zap.String("session_id", sessCtx.SessionID),
			)
		}
	}()
}

func (lsh *loadingStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := handleCommon(ctx, req); handled {
		return err
	}

	if ev := TryUnwrapScenarioReadyEvent(req); ev != nil {
		// 轮数不符的就绪事件来自更早的加载，丢弃
		if ev.Round != ctx.Round {
			zap.L().Debug(
				"丢弃过期的剧本就绪事件",
				zap.String("session_id", ctx.SessionID),
				zap.Int("event_round", ev.Round),
				zap.Int("current_round", ctx.Round),
			)
			return nil
		}

		ctx.Scenario = ev.Scenario

		lsh.onSwitch(STAGE_VOTING)

		return nil
	}

	if jreq := TryUnwrapJoinSessionRequest(req); jreq != nil {
		if jreq.PlayerID != "" && handleReconnect(ctx, jreq) {
			return nil
		}

		SendResp(jreq.RespCh, WrapErrResponse(ErrInvalidPhase))

		return ErrInvalidPhase
	}

	if TryUnwrapTimeoutEvent(req) != nil {
		return nil
	}

	return ErrPhaseBusy
}

func (lsh *loadingStageHandler) OnExit(ctx *GameContext) {
}

func (lsh *loadingStageHandler) SetOnSwitch(onSwitch func(string)) {
	lsh.onSwitch = onSwitch
}

// 投票阶段处理器
type votingStageHandler struct {
	onSwitch func(string)
}

func NewVotingStageHandler() *votingStageHandler {
	return &votingStageHandler{}
}

func (vsh *votingStageHandler) Stage() string {
	return STAGE_VOTING
}

func (vsh *votingStageHandler) OnEnter(ctx *GameContext) {
	ctx.Phase = STAGE_VOTING
	ctx.RoundStart = now()
	ctx.TimerEnd = ctx.RoundStart.Add(ctx.Rules.VoteTimer)
	ctx.TimerRunning = true

	// 倒计时由服务端定时器权威驱动，客户端计时仅作展示
	ctx.SetTimeout(ctx.Rules.VoteTimer)

	zap.L().Info(
		"进入投票阶段",
		zap.String("session_id", ctx.SessionID),
		zap.Int("round", ctx.Round),
		zap.Time("timer_end", ctx.TimerEnd),
	)
}

func (vsh *votingStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := handleCommon(ctx, req); handled {
		return err
	}

	if ev := TryUnwrapTimeoutEvent(req); ev != nil {
		// 全员投票与倒计时到期互相竞争：谁先被状态机消费谁生效，
		// 另一个因阶段或轮数对不上而成为空操作
		if ev.Phase != STAGE_VOTING || ev.Round != ctx.Round {
			return nil
		}

		zap.L().Info(
			"投票倒计时到期，进入结算",
			zap.String("session_id", ctx.SessionID),
			zap.Int("round", ctx.Round),
			zap.Int("votes", len(ctx.Votes)),
		)

		vsh.onSwitch(STAGE_RESULTS)

		return nil
	}

	if vreq := TryUnwrapCastVoteRequest(req); vreq != nil {
		voter, ok := ctx.Players[vreq.PlayerID]
		if !ok || !voter.IsActive {
			return ErrPlayerNotFound
		}

		if voter.IsEliminated {
			return ErrPlayerEliminated
		}

		if ctx.Scenario == nil || !ctx.Scenario.HasOption(vreq.OptionID) {
			return ErrUnknownOption
		}

		// last-write-wins：结算前的重复投票覆盖旧选票
		castAt := now()
		ctx.Votes[vreq.PlayerID] = &Ballot{
			OptionID: vreq.OptionID,
			CastAt:   castAt,
		}

		voter.HasVoted = true

		// 选票镜像走旁路协程，乱序覆盖由持久层按 cast_at 守卫
		go ctx.persistVote(Vote{
			SessionID: ctx.SessionID,
			PlayerID:  vreq.PlayerID,
			Round:     ctx.Round,
			OptionID:  vreq.OptionID,
			CastAt:    castAt,
		})

		ctx.UnicastResp(vreq.PlayerID, WrapResponse(RESP_ACK, AckResponse{Action: REQ_CAST_VOTE}))
		ctx.MarkDirty()

		if ctx.AllVoted() {
			zap.L().Info(
				"全员投票完成，进入结算",
				zap.String("session_id", ctx.SessionID),
				zap.Int("round", ctx.Round),
			)

			vsh.onSwitch(STAGE_RESULTS)
		}

		return nil
	}

	if jreq := TryUnwrapJoinSessionRequest(req); jreq != nil {
		if jreq.PlayerID != "" && handleReconnect(ctx, jreq) {
			return nil
		}

		SendResp(jreq.RespCh, WrapErrResponse(ErrInvalidPhase))

		return ErrInvalidPhase
	}

	// 就绪切换在大厅之外是空操作
	if rreq := TryUnwrapSetReadyRequest(req); rreq != nil {
		ctx.UnicastResp(rreq.PlayerID, WrapResponse(RESP_ACK, AckResponse{Action: REQ_SET_READY}))
		return nil
	}

	return ErrInvalidPhase
}

func (vsh *votingStageHandler) OnExit(ctx *GameContext) {
	ctx.ClearTimeout()
	ctx.TimerRunning = false
}

func (vsh *votingStageHandler) SetOnSwitch(onSwitch func(string)) {
	vsh.onSwitch = onSwitch
}

// 结算阶段处理器
type resultsStageHandler struct {
	onSwitch func(string)
}

func NewResultsStageHandler() *resultsStageHandler {
	return &resultsStageHandler{}
}

func (rsh *resultsStageHandler) Stage() string {
	return STAGE_RESULTS
}

func (rsh *resultsStageHandler) OnEnter(ctx *GameContext) {
	ctx.Phase = STAGE_RESULTS

	tally := TallyVotes(ctx)
	ctx.LastTally = &tally

	zap.L().Info(
		"计票完成",
		zap.String("session_id", ctx.SessionID),
		zap.Int("round", ctx.Round),
		zap.String("winning_option", tally.WinningOption),
		zap.Int("counted", tally.Counted),
	)

	// 无人投票：没有可结算的决议，合成零增减的结算直接落账
	if tally.WinningOption == "" {
		applyOutcome(ctx, ctx.Round, &generator.Outcome{
			Narrative: "The council could not reach any decision. The crisis passes on its own terms, and the city takes note of the silence.",
			Deltas:    map[string]int{},
		}, tally)

		return
	}

	var winning generator.Option
	for _, opt := range ctx.Scenario.Options {
		if opt.ID == tally.WinningOption {
			winning = opt
			break
		}
	}

	ctx.Resolving = true

	sessCtx := ctx.sessionContext()
	round := ctx.Round
	totals := tally.Totals
	evCh := ctx.EvCh
	gen := ctx.Gen

	go func() {
		outcome := gen.Outcome(context.Background(), sessCtx, winning, totals)

		ev := RequestWrapper{
			ReqType: REQ_OUTCOME_READY,
			NativeData: &OutcomeReadyEvent{
				Round:   round,
				Outcome: outcome,
			},
		}

		select {
		case evCh <- ev:
		case <-time.After(30 * time.Second):
			zap.L().Warn(
				"结算就绪事件投递失败：事件通道长期拥塞",
				zap.String("session_id", sessCtx.SessionID),
			)
		}
	}()
}

func (rsh *resultsStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := handleCommon(ctx, req); handled {
		return err
	}

	if ev := TryUnwrapOutcomeReadyEvent(req); ev != nil {
		if !ctx.Resolving || ev.Round != ctx.Round {
			zap.L().Debug(
				"丢弃过期的结算就绪事件",
				zap.String("session_id", ctx.SessionID),
				zap.Int("event_round", ev.Round),
			)
			return nil
		}

		applyOutcome(ctx, ev.Round, ev.Outcome, *ctx.LastTally)

		return nil
	}

	if areq := TryUnwrapAdvanceRoundRequest(req); areq != nil {
		if ctx.Resolving {
			return ErrPhaseBusy
		}

		if areq.PlayerID != ctx.HostID {
			return ErrNotHost
		}

		ctx.UnicastResp(areq.PlayerID, WrapResponse(RESP_ACK, AckResponse{Action: REQ_ADVANCE_ROUND}))

		// 终局判定顺序：资源枯竭优先于轮数耗尽，淘汰居中
		if ctx.Ledger.IsDepleted() {
			ctx.EndReason = END_RESOURCE_DEPLETION
			rsh.onSwitch(STAGE_GAME_OVER)
			return nil
		}

		if len(ctx.Voters()) <= 1 {
			ctx.EndReason = END_ELIMINATION
			rsh.onSwitch(STAGE_GAME_OVER)
			return nil
		}

		if ctx.Round >= ctx.Rules.MaxRounds {
			ctx.EndReason = END_ROUNDS_EXHAUSTED
			rsh.onSwitch(STAGE_GAME_OVER)
			return nil
		}

		ctx.Round++

		rsh.onSwitch(STAGE_SCENARIO_LOADING)

		return nil
	}

	if jreq := TryUnwrapJoinSessionRequest(req); jreq != nil {
		if jreq.PlayerID != "" && handleReconnect(ctx, jreq) {
			return nil
		}

		SendResp(jreq.RespCh, WrapErrResponse(ErrInvalidPhase))

		return ErrInvalidPhase
	}

	if rreq := TryUnwrapSetReadyRequest(req); rreq != nil {
		ctx.UnicastResp(rreq.PlayerID, WrapResponse(RESP_ACK, AckResponse{Action: REQ_SET_READY}))
		return nil
	}

	if TryUnwrapTimeoutEvent(req) != nil {
		return nil
	}

	return ErrInvalidPhase
}

func (rsh *resultsStageHandler) OnExit(ctx *GameContext) {
	ctx.Resolving = false
}

func (rsh *resultsStageHandler) SetOnSwitch(onSwitch func(string)) {
	rsh.onSwitch = onSwitch
}

// applyOutcome 将结算恰好一次地应用到账本，并执行淘汰策略
func applyOutcome(ctx *GameContext, round int, outcome *generator.Outcome, tally TallyResult) {
	if !ctx.Ledger.ApplyOutcome(round, outcome.Deltas) {
		zap.L().Warn(
			"结算重复应用被拒绝",
			zap.String("session_id", ctx.SessionID),
			zap.Int("round", round),
		)
		return
	}

	ctx.LastOutcome = outcome
	ctx.Resolving = false

	eliminated := ctx.Rules.Elimination.Apply(ctx, tally)
	for _, playerID := range eliminated {
		zap.L().Info(
			"玩家被淘汰",
			zap.String("session_id", ctx.SessionID),
			zap.String("player_id", playerID),
			zap.Int("round", round),
			zap.String("policy", ctx.Rules.Elimination.Name()),
		)
	}

	ctx.MarkDirty()
}

// 终局阶段处理器
type gameOverStageHandler struct {
	onSwitch func(string)
}

func NewGameOverStageHandler() *gameOverStageHandler {
	return &gameOverStageHandler{}
}

func (gsh *gameOverStageHandler) Stage() string {
	return STAGE_GAME_OVER
}

func (gsh *gameOverStageHandler) OnEnter(ctx *GameContext) {
	ctx.Phase = STAGE_GAME_OVER
	ctx.IsActive = false
	ctx.TimerRunning = false
	ctx.ClearTimeout()

	zap.L().Info(
		"会话终局",
		zap.String("session_id", ctx.SessionID),
		zap.String("end_reason", ctx.EndReason),
		zap.Int("round", ctx.Round),
	)

	if ctx.Store != nil {
		store := ctx.Store
		sessionID := ctx.SessionID

		go func() {
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			if err := store.MarkInactive(sctx, sessionID); err != nil {
				zap.L().Warn(
					"标记会话失效失败",
					zap.String("session_id", sessionID),
					zap.Error(err),
				)
			}
		}()
	}
}

func (gsh *gameOverStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := handleCommon(ctx, req); handled {
		return err
	}

	// 允许重连查看终局结果
	if jreq := TryUnwrapJoinSessionRequest(req); jreq != nil {
		if jreq.PlayerID != "" && handleReconnect(ctx, jreq) {
			return nil
		}

		SendResp(jreq.RespCh, WrapErrResponse(ErrSessionInactive))

		return ErrSessionInactive
	}

	if TryUnwrapTimeoutEvent(req) != nil {
		return nil
	}

	return ErrSessionInactive
}

func (gsh *gameOverStageHandler) OnExit(ctx *GameContext) {
	// 终局是终态，不应再切出
	ctx.Phase = STAGE_GAME_OVER
}

func (gsh *gameOverStageHandler) SetOnSwitch(onSwitch func(string)) {
	gsh.onSwitch = onSwitch
}
