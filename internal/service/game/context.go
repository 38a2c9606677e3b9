package game

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"project-oversight-be/internal/broadcast"
	"project-oversight-be/internal/generator"
)

// Rules 是一局会话的规则配置，创建后不再变化
type Rules struct {
	MaxRounds       int
	VoteTimer       time.Duration
	RequireAllReady bool
	Elimination     EliminationPolicy
	Baseline        map[string]int
}

// DefaultRules 返回默认规则，测试与缺省配置共用
func DefaultRules() Rules {
	return Rules{
		MaxRounds:       10,
		VoteTimer:       90 * time.Second,
		RequireAllReady: true,
		Elimination:     NewEliminationPolicy("dissent_streak", 2),
		Baseline: map[string]int{
			ResourceTech:      75,
			ResourceManpower:  60,
			ResourceEconomy:   80,
			ResourceHappiness: 90,
			ResourceTrust:     70,
		},
	}
}

// Persister 是会话状态的持久化边界
// 运行时状态以状态机内存为准，持久层是写后镜像
type Persister interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	RecordVote(ctx context.Context, vote Vote) error
	MarkInactive(ctx context.Context, sessionID string) error
}

// ContentSource 提供剧本与结算内容，实现方保证调用永不失败
// （generator.Service 在重试耗尽后退回兜底内容）
type ContentSource interface {
	Scenario(ctx context.Context, sc generator.SessionContext) *generator.Scenario
	Outcome(ctx context.Context, sc generator.SessionContext, winning generator.Option, totals map[string]float64) *generator.Outcome
}

// GameContext 是一个会话的全部权威状态
// 只有该会话的状态机协程读写它，两条命令的读-改-写永远不会交错
type GameContext struct {
	SessionID string
	HostID    string
	Phase     string
	Round     int
	IsActive  bool
	EndReason string

	Players   map[string]*Player
	JoinOrder []string
	Votes     map[string]*Ballot
	Ledger    *ResourceLedger

	Scenario    *generator.Scenario
	LastOutcome *generator.Outcome
	LastTally   *TallyResult

	RoundStart   time.Time
	TimerEnd     time.Time
	TimerRunning bool

	// Results 阶段结算生成进行中的标记，期间 advance 被拒绝
	Resolving bool

	// 快照序号，由状态机单调递增
	Seq uint64

	Rules Rules

	Timer *time.Timer
	// 内部事件通道：超时与生成完成
	EvCh chan RequestWrapper

	Hub   *broadcast.Hub
	Store Persister
	Gen   ContentSource

	dirty           bool
	incentiveCursor int
}

// MarkDirty 标记状态已变化，状态机在本次请求处理完后提交快照
func (gc *GameContext) MarkDirty() {
	gc.dirty = true
}

// UnicastResp 向单个玩家发送响应，通道满时丢弃
func (gc *GameContext) UnicastResp(playerID string, resp ResponseWrapper) {
	player, ok := gc.Players[playerID]
	if !ok || player.RespCh == nil {
		return
	}

	SendResp(player.RespCh, resp)
}

// SendResp 非阻塞发送，通道满时丢弃并告警
func SendResp(respCh chan<- ResponseWrapper, resp ResponseWrapper) {
	if respCh == nil {
		return
	}

	select {
	case respCh <- resp:
	default:
		zap.L().Warn("发送响应失败：响应通道已满")
	}
}

// SetTimeout 设置服务端定时器，到期后向事件通道注入超时事件
// 事件带上当前阶段与轮数，消费方据此丢弃迟到的过期超时
func (gc *GameContext) SetTimeout(d time.Duration) {
	gc.ClearTimeout()

	ev := RequestWrapper{
		ReqType: REQ_TIMEOUT,
		NativeData: &TimeoutEvent{
			Phase: gc.Phase,
			Round: gc.Round,
		},
	}

	evCh := gc.EvCh

	gc.Timer = time.AfterFunc(d, func() {
		select {
		case evCh <- ev:
		case <-time.After(30 * time.Second):
			zap.L().Warn("超时事件投递失败：事件通道长期拥塞")
		}
	})
}

func (gc *GameContext) ClearTimeout() {
	if gc.Timer != nil {
		gc.Timer.Stop()
		gc.Timer = nil
	}
}

// sessionContext 采集生成服务可见的上下文副本
// 必须在状态机协程内调用，生成协程只持有副本
func (gc *GameContext) sessionContext() generator.SessionContext {
	return generator.SessionContext{
		SessionID:   gc.SessionID,
		Round:       gc.Round,
		PlayerCount: gc.CountActive(),
		Resources:   gc.Ledger.Snapshot(),
	}
}

// persistSnapshot 带退避地写入持久层镜像，由旁路协程调用
// 入参快照是完整副本，这里只读 Store 与 SessionID 两个不变字段；
// 并发写入的先后由持久层按序号守卫
// 写失败只记录日志：内存状态仍是权威，下一次变更会再次镜像
func (gc *GameContext) persistSnapshot(snap *Snapshot) {
	if gc.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := backoff.Retry(
		ctx,
		func() (struct{}, error) {
			return struct{}{}, gc.Store.SaveSnapshot(ctx, snap)
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		zap.L().Warn(
			"快照持久化失败",
			zap.String("session_id", gc.SessionID),
			zap.Uint64("seq", snap.Seq),
			zap.Error(err),
		)
	}
}

// persistVote 写入选票记录，同一 (会话, 玩家, 轮次) 覆盖旧记录
// 由旁路协程调用，选票在状态机协程内构建完毕后按值传入
func (gc *GameContext) persistVote(vote Vote) {
	if gc.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := gc.Store.RecordVote(ctx, vote); err != nil {
		zap.L().Warn(
			"选票持久化失败",
			zap.String("session_id", gc.SessionID),
			zap.String("player_id", vote.PlayerID),
			zap.Error(err),
		)
	}
}
