// Package store 定义会话状态的持久化镜像边界
// 运行时状态以会话状态机内存为准，持久层用于会话码查重与落盘留档
package store

import (
	"context"
	"errors"

	"project-oversight-be/internal/service/game"
)

// ErrNotFound 表示会话在持久层不存在
var ErrNotFound = errors.New("会话记录不存在")

type Store interface {
	game.Persister

	// LoadSnapshot 读取最近一次镜像的完整快照
	LoadSnapshot(ctx context.Context, sessionID string) (*game.Snapshot, error)

	// CodeInUse 检查会话码是否已被占用，用于分配时查重
	CodeInUse(ctx context.Context, sessionID string) (bool, error)

	Close() error
}
