package store

import (
	"context"
	"sync"

	"project-oversight-be/internal/service/game"
)

// MemoryStore 纯内存实现，供测试与未配置持久层的开发环境使用
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*game.Snapshot
	// (会话, 玩家, 轮次) 唯一，后写覆盖
	votes map[string]map[voteKey]game.Vote
}

type voteKey struct {
	playerID string
	round    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*game.Snapshot),
		votes:     make(map[string]map[voteKey]game.Vote),
	}
}

func (ms *MemoryStore) SaveSnapshot(_ context.Context, snap *game.Snapshot) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// 镜像写入在后台并发执行，旧序号不得覆盖新序号
	if old, ok := ms.snapshots[snap.SessionID]; ok && old.Seq >= snap.Seq {
		return nil
	}

	copied := *snap
	ms.snapshots[snap.SessionID] = &copied

	return nil
}

func (ms *MemoryStore) LoadSnapshot(_ context.Context, sessionID string) (*game.Snapshot, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	snap, ok := ms.snapshots[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *snap

	return &copied, nil
}

func (ms *MemoryStore) RecordVote(_ context.Context, vote game.Vote) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.votes[vote.SessionID] == nil {
		ms.votes[vote.SessionID] = make(map[voteKey]game.Vote)
	}

	key := voteKey{playerID: vote.PlayerID, round: vote.Round}

	// 乱序到达的旧选票不覆盖更晚的记录
	if old, ok := ms.votes[vote.SessionID][key]; ok && old.CastAt.After(vote.CastAt) {
		return nil
	}

	ms.votes[vote.SessionID][key] = vote

	return nil
}

// VotesForRound 按轮次取回选票，测试用
func (ms *MemoryStore) VotesForRound(sessionID string, round int) []game.Vote {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []game.Vote

	for key, vote := range ms.votes[sessionID] {
		if key.round == round {
			out = append(out, vote)
		}
	}

	return out
}

func (ms *MemoryStore) MarkInactive(_ context.Context, sessionID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if snap, ok := ms.snapshots[sessionID]; ok {
		snap.IsActive = false
	}

	return nil
}

func (ms *MemoryStore) CodeInUse(_ context.Context, sessionID string) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, ok := ms.snapshots[sessionID]

	return ok, nil
}

func (ms *MemoryStore) Close() error {
	return nil
}
