package game

// 玩家名册操作，全部由会话状态机在单协程内调用
// 此处维护的不变量：同一会话的在席玩家永远不超过 MAX_PLAYERS

const MAX_PLAYERS = 4

// AddPlayer 将新玩家加入名册并分配未使用的席位与秘密动机
// 调用方负责先完成阶段与满员校验
func (gc *GameContext) AddPlayer(playerID, name string, respCh chan ResponseWrapper) *Player {
	player := &Player{
		ID:              playerID,
		Name:            name,
		Role:            gc.nextRoleLabel(),
		IsActive:        true,
		VoteWeight:      1.0,
		SecretIncentive: gc.nextIncentive(),
		RespCh:          respCh,
	}

	gc.Players[playerID] = player
	gc.JoinOrder = append(gc.JoinOrder, playerID)

	return player
}

// SoftRemove 软删除：保留记录，仅标记离席
func (gc *GameContext) SoftRemove(playerID string) {
	player, ok := gc.Players[playerID]
	if !ok {
		return
	}

	player.IsActive = false
	player.IsReady = false
}

// CountActive 统计在席玩家数
func (gc *GameContext) CountActive() int {
	count := 0
	for _, p := range gc.Players {
		if p.IsActive {
			count++
		}
	}

	return count
}

// Voters 返回在席且未被淘汰的玩家，即当前轮的应投票者
func (gc *GameContext) Voters() []*Player {
	voters := make([]*Player, 0, len(gc.Players))
	for _, id := range gc.JoinOrder {
		p := gc.Players[id]
		if p.IsActive && !p.IsEliminated {
			voters = append(voters, p)
		}
	}

	return voters
}

// AllVoted 检查所有应投票者是否都已投票
func (gc *GameContext) AllVoted() bool {
	voters := gc.Voters()
	if len(voters) == 0 {
		return false
	}

	for _, p := range voters {
		if !p.HasVoted {
			return false
		}
	}

	return true
}

// AllReady 检查所有在席玩家是否都已就绪
func (gc *GameContext) AllReady() bool {
	for _, p := range gc.Players {
		if p.IsActive && !p.IsReady {
			return false
		}
	}

	return true
}

// ClearRoundFlags 清空上一轮的投票标记与选票
func (gc *GameContext) ClearRoundFlags() {
	for _, p := range gc.Players {
		p.HasVoted = false
	}

	gc.Votes = make(map[string]*Ballot)
}

// AdjustWeight 调整投票权重，下限 0
func (gc *GameContext) AdjustWeight(playerID string, weight float64) {
	player, ok := gc.Players[playerID]
	if !ok {
		return
	}

	if weight < 0 {
		weight = 0
	}

	player.VoteWeight = weight
}

// Eliminate 标记玩家被淘汰；淘汰后不再参与投票与计票
func (gc *GameContext) Eliminate(playerID string) {
	player, ok := gc.Players[playerID]
	if !ok {
		return
	}

	player.IsEliminated = true
	player.HasVoted = false
}

// RotateIncentives 为所有应投票者轮换新的秘密动机并单播给本人
func (gc *GameContext) RotateIncentives() {
	for _, p := range gc.Voters() {
		p.SecretIncentive = gc.nextIncentive()

		gc.UnicastResp(p.ID, WrapResponse(
			RESP_INCENTIVE,
			IncentiveNotification{
				Round:     gc.Round,
				Incentive: p.SecretIncentive,
			},
		))
	}
}

// nextRoleLabel 选出未被在席玩家占用的席位标签
func (gc *GameContext) nextRoleLabel() string {
	used := make(map[string]bool, len(gc.Players))
	for _, p := range gc.Players {
		if p.IsActive {
			used[p.Role] = true
		}
	}

	for _, label := range roleLabels {
		if !used[label] {
			return label
		}
	}

	// 名册已满时不应走到这里，兜底返回首个标签
	return roleLabels[0]
}

func (gc *GameContext) nextIncentive() string {
	incentive := incentivePool[gc.incentiveCursor%len(incentivePool)]
	gc.incentiveCursor++

	return incentive
}
