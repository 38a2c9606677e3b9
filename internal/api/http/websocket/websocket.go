package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"project-oversight-be/internal/service/game"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// NOTE: 暂时允许所有来源
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	// 心跳间隔，单位秒
	HEARTBEAT_INTERVAL = 30 * time.Second
	// 心跳超时时间，单位秒
	HEARTBEAT_TIMEOUT = 45 * time.Second
)

var heartbeatHandler = func(conn *websocket.Conn) func(string) error {
	return func(string) error {
		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		return nil
	}
}

// 允许从客户端直接转发给状态机的请求类型，
// 内部事件与同步查询不走 WS 通道
var allowedClientRequests = map[string]struct{}{
	game.REQ_SET_READY:     {},
	game.REQ_START_GAME:    {},
	game.REQ_CAST_VOTE:     {},
	game.REQ_ADVANCE_ROUND: {},
	game.REQ_LEAVE_SESSION: {},
}
