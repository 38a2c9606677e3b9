package game

import "errors"

// 校验类错误在任何状态变更之前同步返回给调用方
var (
	ErrInvalidRequest   = errors.New("无效的请求格式")
	ErrSessionNotFound  = errors.New("会话不存在")
	ErrSessionInactive  = errors.New("会话已结束")
	ErrSessionFull      = errors.New("会话人数已满")
	ErrInvalidPhase     = errors.New("当前阶段不支持该操作")
	ErrPhaseBusy        = errors.New("会话正在处理中，请稍后重试")
	ErrPlayerNotFound   = errors.New("玩家不存在")
	ErrPlayerEliminated = errors.New("玩家已被淘汰，不能投票")
	ErrUnknownOption    = errors.New("未知的投票选项")
	ErrStoreUnavailable = errors.New("存储服务暂不可用，请稍后重试")

	ErrNotHost          = errors.New("只有主持人可以执行该操作")
	ErrNotEnoughPlayers = errors.New("玩家数量不足，无法开始游戏")
	ErrPlayersNotReady  = errors.New("仍有玩家未就绪")
)

// ErrCode 将领域错误映射为客户端可依赖的稳定错误码
func ErrCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionInactive):
		return "session_inactive"
	case errors.Is(err, ErrSessionFull):
		return "session_full"
	case errors.Is(err, ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, ErrPhaseBusy):
		return "phase_busy"
	case errors.Is(err, ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, ErrPlayerEliminated):
		return "player_eliminated"
	case errors.Is(err, ErrUnknownOption):
		return "unknown_option"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrNotHost):
		return "not_host"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, ErrPlayersNotReady):
		return "players_not_ready"
	default:
		return "internal_error"
	}
}
