package game

import (
	"time"

	"project-oversight-be/internal/generator"
)

// PlayerView 是玩家在共享快照中的公开视图，不含秘密动机
type PlayerView struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	IsActive     bool    `json:"is_active"`
	IsReady      bool    `json:"is_ready"`
	IsEliminated bool    `json:"is_eliminated"`
	HasVoted     bool    `json:"has_voted"`
	VoteWeight   float64 `json:"vote_weight"`
}

// Snapshot 是下发给所有客户端的完整权威状态
// 始终整体投递而非增量，避免客户端做部分更新合并
type Snapshot struct {
	Seq       uint64 `json:"seq"`
	SessionID string `json:"session_id"`
	HostID    string `json:"host_id"`
	Phase     string `json:"phase"`
	IsActive  bool   `json:"is_active"`
	EndReason string `json:"end_reason,omitempty"`

	CurrentRound int `json:"current_round"`
	MaxRounds    int `json:"max_rounds"`

	Players   []PlayerView   `json:"players"`
	Resources map[string]int `json:"resources"`

	CurrentScenario *generator.Scenario `json:"current_scenario"`
	LastOutcome     *generator.Outcome  `json:"last_outcome"`
	LastTally       *TallyResult        `json:"last_tally,omitempty"`

	TimerRunning   bool       `json:"timer_running"`
	TimerEndTime   *time.Time `json:"timer_end_time"`
	RoundStartTime *time.Time `json:"round_start_time"`
}

// BuildSnapshot 从会话状态构建快照，玩家按加入顺序排列
func BuildSnapshot(gc *GameContext) *Snapshot {
	players := make([]PlayerView, 0, len(gc.JoinOrder))

	for _, id := range gc.JoinOrder {
		p, ok := gc.Players[id]
		if !ok {
			continue
		}

		players = append(players, PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Role:         p.Role,
			IsActive:     p.IsActive,
			IsReady:      p.IsReady,
			IsEliminated: p.IsEliminated,
			HasVoted:     p.HasVoted,
			VoteWeight:   p.VoteWeight,
		})
	}

	snap := &Snapshot{
		Seq:             gc.Seq,
		SessionID:       gc.SessionID,
		HostID:          gc.HostID,
		Phase:           gc.Phase,
		IsActive:        gc.IsActive,
		EndReason:       gc.EndReason,
		CurrentRound:    gc.Round,
		MaxRounds:       gc.Rules.MaxRounds,
		Players:         players,
		Resources:       gc.Ledger.Snapshot(),
		CurrentScenario: gc.Scenario,
		LastOutcome:     gc.LastOutcome,
		LastTally:       gc.LastTally,
		TimerRunning:    gc.TimerRunning,
	}

	if gc.TimerRunning {
		end := gc.TimerEnd
		snap.TimerEndTime = &end
	}

	if !gc.RoundStart.IsZero() {
		start := gc.RoundStart
		snap.RoundStartTime = &start
	}

	return snap
}
