package game

import "time"

// 议会席位（角色仅为风味文本，不影响规则）
var roleLabels = []string{
	"Minister of Technology",
	"Minister of Economy",
	"Minister of Welfare",
	"Minister of Security",
}

// 秘密动机池：每轮开始时为每名玩家轮换一条，仅单播给本人
var incentivePool = []string{
	"Push the council toward any option that protects the economy, no matter the cost.",
	"You secretly answer to the labor unions. Keep manpower from falling.",
	"Public opinion is your currency. Never let happiness take the biggest hit.",
	"The research lobby funds you. Technology must survive this crisis.",
	"You believe the council is corrupt. Vote against the obvious consensus.",
	"An anonymous patron rewards chaos. Favor the riskiest option on the table.",
	"Your family depends on state trust programs. Defend trust above all.",
	"You plan to defect next term. Drain whichever resource is strongest.",
}

type Player struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	IsActive     bool    `json:"is_active"`
	IsReady      bool    `json:"is_ready"`
	IsEliminated bool    `json:"is_eliminated"`
	HasVoted     bool    `json:"has_voted"`
	VoteWeight   float64 `json:"vote_weight"`

	// 秘密动机只通过单播下发，绝不进入共享快照
	SecretIncentive string `json:"-"`

	// 连续与多数派相悖的轮数，供淘汰策略使用
	DissentStreak int `json:"-"`

	RespCh chan ResponseWrapper `json:"-"`
}

// Ballot 记录一名玩家在当前轮的选票
// 重复投票采用 last-write-wins：覆盖选项并刷新时间戳
type Ballot struct {
	OptionID string
	CastAt   time.Time
}

// Vote 是写入持久层的选票记录
type Vote struct {
	SessionID string
	PlayerID  string
	Round     int
	OptionID  string
	CastAt    time.Time
}
