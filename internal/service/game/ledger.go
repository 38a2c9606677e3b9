package game

// 五项共享资源
const (
	ResourceTech      = "tech"
	ResourceManpower  = "manpower"
	ResourceEconomy   = "economy"
	ResourceHappiness = "happiness"
	ResourceTrust     = "trust"
)

var ResourceNames = []string{
	ResourceTech,
	ResourceManpower,
	ResourceEconomy,
	ResourceHappiness,
	ResourceTrust,
}

// ResourceLedger 管理会话的资源计数
// 资源只在结算应用时变动，投票本身永远不直接修改资源
type ResourceLedger struct {
	values map[string]int

	// 已应用过结算的最大轮数，保证每轮恰好应用一次
	appliedRound int
}

func NewResourceLedger(baseline map[string]int) *ResourceLedger {
	values := make(map[string]int, len(ResourceNames))
	for _, name := range ResourceNames {
		values[name] = baseline[name]
	}

	return &ResourceLedger{
		values: values,
	}
}

// ApplyOutcome 将一轮结算的资源增减应用到账本上
// 以轮数作为幂等键：同一轮的第二次应用会被拒绝
// 应用时不做下界裁剪，负值保留给枯竭检测；上界裁剪到 100
func (rl *ResourceLedger) ApplyOutcome(round int, deltas map[string]int) bool {
	if round <= rl.appliedRound {
		return false
	}

	for name, delta := range deltas {
		if _, ok := rl.values[name]; !ok {
			continue
		}

		next := rl.values[name] + delta
		if next > 100 {
			next = 100
		}

		rl.values[name] = next
	}

	rl.appliedRound = round

	return true
}

// IsDepleted 任一资源 <= 0 即视为枯竭
func (rl *ResourceLedger) IsDepleted() bool {
	for _, v := range rl.values {
		if v <= 0 {
			return true
		}
	}

	return false
}

// DepletedResource 返回首个枯竭的资源名（按固定顺序），没有则返回空串
func (rl *ResourceLedger) DepletedResource() string {
	for _, name := range ResourceNames {
		if rl.values[name] <= 0 {
			return name
		}
	}

	return ""
}

// Snapshot 返回只读副本，供快照广播使用
func (rl *ResourceLedger) Snapshot() map[string]int {
	out := make(map[string]int, len(rl.values))
	for name, v := range rl.values {
		out[name] = v
	}

	return out
}
