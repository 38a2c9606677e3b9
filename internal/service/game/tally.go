package game

import (
	"time"

	"go.uber.org/zap"
)

// TallyResult 是一轮投票的计票结果
type TallyResult struct {
	// 选项 ID -> 加权票数
	Totals map[string]float64 `json:"totals"`
	// 胜出选项 ID；无任何选票时为空串
	WinningOption string `json:"winning_option"`
	// 计入的选票数
	Counted int `json:"counted"`
}

// TallyVotes 按投票者当前权重加权计票
// 平票规则：票数最高的选项中，最后一张有效选票时间最早者胜出；
// 时间仍相同则取字典序最小的选项 ID，保证结果可复现
func TallyVotes(gc *GameContext) TallyResult {
	totals := make(map[string]float64)
	lastCast := make(map[string]time.Time)

	counted := 0

	for playerID, ballot := range gc.Votes {
		voter, ok := gc.Players[playerID]
		if !ok || !voter.IsActive || voter.IsEliminated {
			continue
		}

		totals[ballot.OptionID] += voter.VoteWeight
		counted++

		if ballot.CastAt.After(lastCast[ballot.OptionID]) {
			lastCast[ballot.OptionID] = ballot.CastAt
		}
	}

	var winner string
	var winnerTotal float64

	for optionID, total := range totals {
		if winner == "" {
			winner = optionID
			winnerTotal = total
			continue
		}

		switch {
		case total > winnerTotal:
			winner = optionID
			winnerTotal = total
		case total == winnerTotal:
			// 平票：最后一张选票更早的选项胜出
			if lastCast[optionID].Before(lastCast[winner]) ||
				(lastCast[optionID].Equal(lastCast[winner]) && optionID < winner) {
				winner = optionID
			}
		}
	}

	return TallyResult{
		Totals:        totals,
		WinningOption: winner,
		Counted:       counted,
	}
}

// EliminationPolicy 决定一轮结算后哪些玩家被淘汰
// 仓库层面将淘汰触发条件视为可插拔策略，具体规则由实现文档化
type EliminationPolicy interface {
	Name() string

	// Apply 在结算应用后调用，返回本轮被淘汰的玩家 ID
	Apply(gc *GameContext, tally TallyResult) []string
}

// NewEliminationPolicy 按配置名构造策略，未知名称退回 none
func NewEliminationPolicy(name string, threshold int) EliminationPolicy {
	switch name {
	case "dissent_streak":
		if threshold < 1 {
			threshold = 2
		}
		return &dissentStreakPolicy{threshold: threshold}
	case "none":
		return noElimination{}
	default:
		zap.L().Warn(
			"未知的淘汰策略，退回 none",
			zap.String("policy", name),
		)
		return noElimination{}
	}
}

// noElimination 不淘汰任何玩家
type noElimination struct{}

func (noElimination) Name() string { return "none" }

func (noElimination) Apply(*GameContext, TallyResult) []string { return nil }

// dissentStreakPolicy 连续逆多数投票淘汰策略：
//   - 投给胜出选项：连续计数清零，权重恢复 1.0
//   - 投给其他选项：连续计数 +1；首次达到 threshold-1 时权重减半作为警告，
//     达到 threshold 时被淘汰
//   - 弃权（未投票）不改变连续计数
type dissentStreakPolicy struct {
	threshold int
}

func (p *dissentStreakPolicy) Name() string { return "dissent_streak" }

func (p *dissentStreakPolicy) Apply(gc *GameContext, tally TallyResult) []string {
	if tally.WinningOption == "" {
		return nil
	}

	var eliminated []string

	for _, voter := range gc.Voters() {
		ballot, ok := gc.Votes[voter.ID]
		if !ok {
			continue
		}

		if ballot.OptionID == tally.WinningOption {
			voter.DissentStreak = 0
			gc.AdjustWeight(voter.ID, 1.0)
			continue
		}

		voter.DissentStreak++

		if voter.DissentStreak >= p.threshold {
			gc.Eliminate(voter.ID)
			eliminated = append(eliminated, voter.ID)
			continue
		}

		if voter.DissentStreak == p.threshold-1 {
			gc.AdjustWeight(voter.ID, voter.VoteWeight/2)
		}
	}

	return eliminated
}
