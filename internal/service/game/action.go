package game

import (
	"time"

	"project-oversight-be/internal/generator"
)

type JoinSessionRequest struct {
	// 携带已有玩家 ID 时按 ID 重连（宿主首次连接也走这条路径）
	PlayerID   string               `json:"player_id,omitempty"`
	PlayerName string               `json:"player_name"`
	RespCh     chan ResponseWrapper `json:"-"`
}

type JoinSessionResponse struct {
	SessionID string `json:"session_id"`
	HostID    string `json:"host_id"`
	Joiner    Player `json:"joiner"`
	// 仅下发给加入者本人
	Incentive string `json:"incentive,omitempty"`
}

type SetReadyRequest struct {
	PlayerID string `json:"player_id"`
	IsReady  bool   `json:"is_ready"`
}

type StartGameRequest struct {
	PlayerID string `json:"player_id"`
}

type CastVoteRequest struct {
	PlayerID string `json:"player_id"`
	OptionID string `json:"option_id"`
}

type AdvanceRoundRequest struct {
	PlayerID string `json:"player_id"`
}

type LeaveSessionRequest struct {
	PlayerID string               `json:"player_id"`
	RespCh   chan ResponseWrapper `json:"-"`
}

type LeaveSessionResponse struct {
	LeftPlayerID   string `json:"left_player_id"`
	LeftPlayerName string `json:"left_player_name"`
}

type GetStateRequest struct {
	ReplyCh chan *Snapshot `json:"-"`
}

// AckResponse 确认命令已被接受；最终状态以随后的快照为准
type AckResponse struct {
	Action string `json:"action"`
}

// IncentiveNotification 每轮单播给玩家本人的秘密动机
type IncentiveNotification struct {
	Round     int    `json:"round"`
	Incentive string `json:"incentive"`
}

// TimeoutEvent 由服务端定时器注入，客户端倒计时仅作展示
type TimeoutEvent struct {
	Phase string
	Round int
}

// ScenarioReadyEvent 剧本生成完成后由生成协程注入
type ScenarioReadyEvent struct {
	Round    int
	Scenario *generator.Scenario
}

// OutcomeReadyEvent 结算生成完成后由生成协程注入
type OutcomeReadyEvent struct {
	Round   int
	Outcome *generator.Outcome
}

// 仅用于选票时间戳，统一从这里取当前时间便于测试替换
var now = time.Now
