package http

import (
	"errors"
	"fmt"

	"project-oversight-be/internal/service/dto"
	"project-oversight-be/internal/service/game"
	"project-oversight-be/internal/state"

	"github.com/kataras/iris/v12"
	qrcode "github.com/skip2/go-qrcode"
)

func statusForErr(err error) int {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return iris.StatusNotFound
	case errors.Is(err, game.ErrStoreUnavailable), errors.Is(err, game.ErrPhaseBusy):
		return iris.StatusServiceUnavailable
	default:
		return iris.StatusBadRequest
	}
}

func writeErr(ctx iris.Context, err error) {
	ctx.StatusCode(statusForErr(err))
	ctx.JSON(dto.ErrorResponse{
		Error: err.Error(),
		Code:  game.ErrCode(err),
	})
}

func CreateSession(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateSessionRequest

		if err := ctx.ReadJSON(&req); err != nil {
			writeErr(ctx, game.ErrInvalidRequest)
			return
		}

		resp, err := appState.SessionSvc.CreateSession(req)
		if err != nil {
			writeErr(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

// GetSessionState 同步返回完整快照，供轮询或断线兜底使用
func GetSessionState(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		sessionID := ctx.Params().Get("session_id")

		snap, err := appState.SessionSvc.GetState(sessionID)
		if err != nil {
			writeErr(ctx, err)
			return
		}

		ctx.JSON(snap)
	}
}

// SessionQR 返回指向加入页面的二维码 PNG，便于同屏扫码入局
func SessionQR(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		sessionID := ctx.Params().Get("session_id")

		if _, err := appState.SessionSvc.GetState(sessionID); err != nil {
			writeErr(ctx, err)
			return
		}

		joinURL := fmt.Sprintf(
			"%s/join?session_id=%s",
			appState.Cfg.PublicBaseURL,
			sessionID,
		)

		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			writeErr(ctx, err)
			return
		}

		ctx.ContentType("image/png")
		ctx.Write(png)
	}
}
