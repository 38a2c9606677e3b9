package websocket

import (
	"encoding/json"
	"time"

	"project-oversight-be/internal/service/game"
	"project-oversight-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// JoinSession 处理会话内的全双工连接：
// 首条消息必须是 JoinSession 请求，之后读协程转发命令、
// 写协程下发单播响应与广播快照
func JoinSession(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		sessionID := ctx.URLParam("session_id")

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		// 缓冲响应，避免服务端在握手期间读走的确认丢失
		respCh := make(chan game.ResponseWrapper, 64)

		// 读取首次请求，获取必要的参数
		_, msg, err := conn.ReadMessage()
		if err != nil {
			zap.L().Error(
				"读取首次请求失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)
			return
		}

		var wrapper game.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil {
			zap.L().Error(
				"解析首次请求失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)

			return
		}

		req := game.TryUnwrapJoinSessionRequest(wrapper)
		if req == nil {
			zap.L().Error(
				"首次请求不是JoinSession类型",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Any("wrapper", wrapper),
			)

			return
		}

		req.RespCh = respCh

		// 先取得会话状态机的请求通道
		reqCh, err := appState.SessionSvc.Attach(sessionID)
		if err != nil {
			zap.L().Error(
				"定位会话失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)

			conn.WriteJSON(game.WrapErrResponse(err))

			return
		}

		joinWrapper := game.RequestWrapper{
			ReqType:    game.REQ_JOIN_SESSION,
			NativeData: req,
		}

		select {
		case reqCh <- joinWrapper:
		case <-time.After(3 * time.Second):
			zap.L().Error("发送加入请求超时", zap.String("session_id", sessionID))
			return
		}

		// 等待并读取加入确认响应，获取玩家ID
		var playerID string
		var playerName string

		select {
		case joinResp := <-respCh:
			if joinResp.RespType == game.RESP_JOIN_SESSION {
				if respData, ok := joinResp.Data.(game.JoinSessionResponse); ok {
					playerID = respData.Joiner.ID
					playerName = respData.Joiner.Name
				}
			}

			// 将响应放回通道供写协程发送
			select {
			case respCh <- joinResp:
			default:
				zap.L().Warn("无法回放加入响应")
			}
		case <-time.After(3 * time.Second):
			zap.L().Error("等待加入响应超时", zap.String("client_ip", ctx.RemoteAddr()))
			return
		}

		if playerID == "" {
			zap.L().Error("未能获取玩家ID", zap.String("client_ip", ctx.RemoteAddr()))

			// 回放的错误响应仍在通道里，取出发给客户端再断开
			select {
			case resp := <-respCh:
				conn.WriteJSON(resp)
			default:
			}

			return
		}

		// 订阅会话快照流，与单播响应在写协程合流
		sub, err := appState.SessionSvc.Subscribe(sessionID)
		if err != nil {
			zap.L().Error(
				"订阅快照失败",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			return
		}

		defer appState.SessionSvc.Unsubscribe(sub)

		zap.L().Info(
			"玩家成功加入会话",
			zap.String("client_ip", ctx.RemoteAddr()),
			zap.String("session_id", sessionID),
			zap.String("player_id", playerID),
			zap.String("player_name", playerName),
		)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		clientIP := ctx.RemoteAddr()

		// 写入协程
		go func() {
			ticker := time.NewTicker(HEARTBEAT_INTERVAL)
			defer ticker.Stop()

			for {
				select {
				case <-writeDoneCh:
					zap.L().Info(
						"WebSocket写入协程退出",
						zap.String("client_ip", clientIP),
					)
					return

				case <-ticker.C:
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Error(
							"发送心跳失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

					conn.SetWriteDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

				case snapMsg, ok := <-sub.C():
					if !ok {
						zap.L().Info(
							"快照订阅已关闭，退出写协程",
							zap.String("client_ip", clientIP),
						)
						return
					}

					resp := game.WrapResponse(game.RESP_SNAPSHOT, snapMsg.Data)

					if err := conn.WriteJSON(resp); err != nil {
						zap.L().Error(
							"发送快照失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

				case resp := <-respCh:
					// 响应通道归本连接所有，状态机从不关闭它；
					// 退出只经由 writeDoneCh 或订阅通道关闭
					if err := conn.WriteJSON(resp); err != nil {
						zap.L().Error(
							"发送消息失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

					zap.L().Debug(
						"发送消息",
						zap.String("client_ip", clientIP),
						zap.Any("response", resp),
					)
				}
			}
		}()

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			// 解析消息
			var wrapper game.RequestWrapper

			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Error(
					"解析消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)

				game.SendResp(respCh, game.WrapErrResponse(game.ErrInvalidRequest))

				continue
			}

			if _, ok := allowedClientRequests[wrapper.ReqType]; !ok {
				zap.L().Warn(
					"拒绝不受支持的请求类型",
					zap.String("client_ip", clientIP),
					zap.String("request_type", wrapper.ReqType),
				)

				game.SendResp(respCh, game.WrapErrResponse(game.ErrInvalidRequest))

				continue
			}

			// 将解析后的请求发送到会话状态机
			select {
			case reqCh <- wrapper:
				zap.L().Debug(
					"发送请求到会话状态机",
					zap.String("client_ip", clientIP),
					zap.Any("request_wrapper", wrapper),
				)
			default:
				zap.L().Error(
					"发送请求到会话状态机失败：请求通道已满",
					zap.String("client_ip", clientIP),
				)

				game.SendResp(respCh, game.WrapErrResponse(game.ErrPhaseBusy))
			}
		}

		// 读循环退出，表示客户端断开连接
		// 发送 LeaveSession 请求通知状态机清理玩家
		zap.L().Info(
			"客户端连接断开，发送退出请求",
			zap.String("client_ip", clientIP),
			zap.String("player_id", playerID),
		)

		leaveReq := game.LeaveSessionRequest{
			PlayerID: playerID,
			RespCh:   respCh,
		}

		leaveWrapper := game.RequestWrapper{
			ReqType:    game.REQ_LEAVE_SESSION,
			NativeData: &leaveReq,
		}

		select {
		case reqCh <- leaveWrapper:
			zap.L().Debug(
				"发送退出请求成功",
				zap.String("player_id", playerID),
			)
		default:
			zap.L().Warn(
				"发送退出请求失败：请求通道已满",
				zap.String("player_id", playerID),
			)
			// 即使发送失败也继续等待，确保资源回收
		}

		// 等待退出确认响应或超时；通道从不被状态机关闭，
		// 超时是唯一的兜底退出路径
		waitTimer := time.NewTimer(3 * time.Second)
		defer waitTimer.Stop()

	waitLoop:
		for {
			select {
			case resp := <-respCh:
				if resp.RespType == game.RESP_LEAVE_SESSION {
					zap.L().Info(
						"收到退出确认响应",
						zap.String("player_id", playerID),
					)
					break waitLoop
				}

				zap.L().Debug(
					"收到非退出响应，继续等待",
					zap.String("player_id", playerID),
					zap.String("resp_type", resp.RespType),
				)
			case <-waitTimer.C:
				zap.L().Warn(
					"等待退出确认超时，强制退出",
					zap.String("player_id", playerID),
				)
				break waitLoop
			}
		}

		zap.L().Info(
			"WebSocket连接处理完成",
			zap.String("client_ip", clientIP),
			zap.String("player_id", playerID),
		)
	}
}
