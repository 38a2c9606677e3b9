package http

import (
	"fmt"

	"project-oversight-be/internal/api/http/websocket"
	"project-oversight-be/internal/state"

	"github.com/kataras/iris/v12"
)

func RunServer(appState *state.AppState) {
	app := iris.Default()

	app.HandleDir(
		"/",
		iris.Dir("./oversight-fe"),
		iris.DirOptions{
			IndexName: "index.html",
			SPA:       true,
			Compress:  true,
		},
	)

	api := app.Party("/api/v1")

	api.Post("/sessions/create", CreateSession(appState))
	api.Get("/sessions/{session_id}/state", GetSessionState(appState))
	api.Get("/sessions/{session_id}/qr", SessionQR(appState))

	api.Get("/ws/join", websocket.JoinSession(appState))

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	app.Listen(addr)
}
