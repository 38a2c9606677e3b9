package state

import (
	"project-oversight-be/internal/config"
	"project-oversight-be/internal/service"
)

type AppState struct {
	Cfg        *config.AppConfig
	SessionSvc *service.SessionService
}

func NewAppState(
	cfg *config.AppConfig,
	sessionSvc *service.SessionService,
) *AppState {
	return &AppState{
		Cfg:        cfg,
		SessionSvc: sessionSvc,
	}
}
