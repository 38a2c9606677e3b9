package dto

import "project-oversight-be/internal/service/game"

type CreateSessionRequest struct {
	HostName string `json:"host_name"`
}

type CreateSessionResponse struct {
	SessionID string      `json:"session_id"`
	HostID    string      `json:"host_id"`
	Host      game.Player `json:"host"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
