package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-oversight-be/internal/service/game"
	"project-oversight-be/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() { st.Close() })

	return st
}

func sampleSnapshot(sessionID string, seq uint64) *game.Snapshot {
	end := time.Now().Add(90 * time.Second).UTC()
	start := time.Now().UTC()

	return &game.Snapshot{
		Seq:          seq,
		SessionID:    sessionID,
		HostID:       "host",
		Phase:        game.STAGE_VOTING,
		IsActive:     true,
		CurrentRound: 2,
		MaxRounds:    10,
		Players: []game.PlayerView{
			{ID: "host", Name: "Hera", Role: "Minister of Technology", IsActive: true, VoteWeight: 1.0},
			{ID: "p2", Name: "Bui", Role: "Minister of Economy", IsActive: true, HasVoted: true, VoteWeight: 0.5},
		},
		Resources: map[string]int{
			game.ResourceTech:      70,
			game.ResourceManpower:  55,
			game.ResourceEconomy:   80,
			game.ResourceHappiness: 85,
			game.ResourceTrust:     60,
		},
		TimerRunning:   true,
		TimerEndTime:   &end,
		RoundStartTime: &start,
	}
}

func TestStore_SaveAndLoadSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	snap := sampleSnapshot("SESS01", 3)
	require.NoError(t, st.SaveSnapshot(ctx, snap))

	loaded, err := st.LoadSnapshot(ctx, "SESS01")
	require.NoError(t, err)

	assert.Equal(t, snap.Seq, loaded.Seq)
	assert.Equal(t, snap.Phase, loaded.Phase)
	assert.Equal(t, snap.CurrentRound, loaded.CurrentRound)
	assert.Len(t, loaded.Players, 2)
	assert.Equal(t, snap.Resources, loaded.Resources)
	require.NotNil(t, loaded.TimerEndTime)
	assert.WithinDuration(t, *snap.TimerEndTime, *loaded.TimerEndTime, time.Second)
}

func TestStore_SaveSnapshotUpserts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("SESS01", 1)))

	updated := sampleSnapshot("SESS01", 2)
	updated.Phase = game.STAGE_RESULTS
	require.NoError(t, st.SaveSnapshot(ctx, updated))

	loaded, err := st.LoadSnapshot(ctx, "SESS01")
	require.NoError(t, err)

	assert.Equal(t, uint64(2), loaded.Seq)
	assert.Equal(t, game.STAGE_RESULTS, loaded.Phase)
}

// 镜像写入来自后台协程，落库顺序不保证：旧序号不得覆盖新序号
func TestStore_SaveSnapshotIgnoresStaleSeq(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("SESS01", 5)))

	stale := sampleSnapshot("SESS01", 3)
	stale.Phase = game.STAGE_RESULTS
	require.NoError(t, st.SaveSnapshot(ctx, stale))

	loaded, err := st.LoadSnapshot(ctx, "SESS01")
	require.NoError(t, err)

	assert.Equal(t, uint64(5), loaded.Seq)
	assert.Equal(t, game.STAGE_VOTING, loaded.Phase)
}

func TestStore_LoadSnapshotNotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.LoadSnapshot(context.Background(), "MISSING")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_RecordVoteOverwritesSameRound(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	first := game.Vote{
		SessionID: "SESS01",
		PlayerID:  "p1",
		Round:     1,
		OptionID:  "option1",
		CastAt:    time.Now().UTC(),
	}
	require.NoError(t, st.RecordVote(ctx, first))

	// 同一 (会话, 玩家, 轮次) 的重投覆盖旧记录
	recast := first
	recast.OptionID = "option2"
	recast.CastAt = first.CastAt.Add(time.Second)
	require.NoError(t, st.RecordVote(ctx, recast))

	votes, err := st.VotesForRound(ctx, "SESS01", 1)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "option2", votes[0].OptionID)

	// 乱序到达的更早选票不覆盖更晚的记录
	stale := first
	stale.OptionID = "option3"
	stale.CastAt = first.CastAt.Add(-time.Second)
	require.NoError(t, st.RecordVote(ctx, stale))

	votes, err = st.VotesForRound(ctx, "SESS01", 1)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "option2", votes[0].OptionID)

	// 另一轮是独立记录
	nextRound := first
	nextRound.Round = 2
	require.NoError(t, st.RecordVote(ctx, nextRound))

	votes, err = st.VotesForRound(ctx, "SESS01", 2)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestStore_MarkInactive(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("SESS01", 1)))
	require.NoError(t, st.MarkInactive(ctx, "SESS01"))

	inUse, err := st.CodeInUse(ctx, "SESS01")
	require.NoError(t, err)
	assert.True(t, inUse, "inactive session still occupies its code")
}

func TestStore_CodeInUse(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	inUse, err := st.CodeInUse(ctx, "FRESH1")
	require.NoError(t, err)
	assert.False(t, inUse)

	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("FRESH1", 1)))

	inUse, err = st.CodeInUse(ctx, "FRESH1")
	require.NoError(t, err)
	assert.True(t, inUse)
}
