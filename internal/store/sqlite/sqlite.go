// Package sqlite 提供基于 SQLite 的会话镜像存储
// 表结构沿用原 games/players/votes/resources 的划分，
// 完整快照另存 JSON 列，读取时以 JSON 为准，结构化列用于离线查询
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"project-oversight-be/internal/service/game"
	"project-oversight-be/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	session_id       TEXT PRIMARY KEY,
	host_id          TEXT NOT NULL,
	phase            TEXT NOT NULL,
	current_round    INTEGER NOT NULL,
	max_rounds       INTEGER NOT NULL,
	is_active        INTEGER NOT NULL,
	end_reason       TEXT NOT NULL DEFAULT '',
	timer_running    INTEGER NOT NULL DEFAULT 0,
	timer_end_time   INTEGER,
	round_start_time INTEGER,
	seq              INTEGER NOT NULL,
	snapshot         TEXT NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS players (
	session_id    TEXT NOT NULL,
	player_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	is_active     INTEGER NOT NULL,
	is_eliminated INTEGER NOT NULL,
	has_voted     INTEGER NOT NULL,
	vote_weight   REAL NOT NULL,
	PRIMARY KEY (session_id, player_id)
);

CREATE TABLE IF NOT EXISTS votes (
	session_id TEXT NOT NULL,
	player_id  TEXT NOT NULL,
	round      INTEGER NOT NULL,
	option_id  TEXT NOT NULL,
	cast_at    INTEGER NOT NULL,
	PRIMARY KEY (session_id, player_id, round)
);

CREATE TABLE IF NOT EXISTS resources (
	session_id TEXT PRIMARY KEY,
	tech       INTEGER NOT NULL,
	manpower   INTEGER NOT NULL,
	economy    INTEGER NOT NULL,
	happiness  INTEGER NOT NULL,
	trust      INTEGER NOT NULL
);
`

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open 打开（必要时初始化）SQLite 存储
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}

	// 单连接串行化全部镜像写入，写入来自各会话的旁路协程
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	return &Store{db: db}, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}

	return 0
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *game.Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("快照序列化失败: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	// 镜像写入在后台并发执行，到达顺序不保证：旧序号不得覆盖新序号
	var existingSeq uint64

	scanErr := tx.QueryRowContext(
		ctx,
		`SELECT seq FROM games WHERE session_id = ?`,
		snap.SessionID,
	).Scan(&existingSeq)

	switch {
	case scanErr == sql.ErrNoRows:
	case scanErr != nil:
		return scanErr
	case existingSeq >= snap.Seq:
		return nil
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO games (
	session_id, host_id, phase, current_round, max_rounds, is_active,
	end_reason, timer_running, timer_end_time, round_start_time,
	seq, snapshot, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	phase = excluded.phase,
	current_round = excluded.current_round,
	is_active = excluded.is_active,
	end_reason = excluded.end_reason,
	timer_running = excluded.timer_running,
	timer_end_time = excluded.timer_end_time,
	round_start_time = excluded.round_start_time,
	seq = excluded.seq,
	snapshot = excluded.snapshot,
	updated_at = excluded.updated_at`,
		snap.SessionID, snap.HostID, snap.Phase, snap.CurrentRound, snap.MaxRounds,
		boolToInt(snap.IsActive), snap.EndReason, boolToInt(snap.TimerRunning),
		toNullMillis(snap.TimerEndTime), toNullMillis(snap.RoundStartTime),
		snap.Seq, string(blob), toMillis(time.Now()),
	)
	if err != nil {
		return err
	}

	for _, p := range snap.Players {
		_, err = tx.ExecContext(ctx, `
INSERT INTO players (
	session_id, player_id, name, role, is_active, is_eliminated, has_voted, vote_weight
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, player_id) DO UPDATE SET
	name = excluded.name,
	role = excluded.role,
	is_active = excluded.is_active,
	is_eliminated = excluded.is_eliminated,
	has_voted = excluded.has_voted,
	vote_weight = excluded.vote_weight`,
			snap.SessionID, p.ID, p.Name, p.Role,
			boolToInt(p.IsActive), boolToInt(p.IsEliminated), boolToInt(p.HasVoted), p.VoteWeight,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO resources (session_id, tech, manpower, economy, happiness, trust)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	tech = excluded.tech,
	manpower = excluded.manpower,
	economy = excluded.economy,
	happiness = excluded.happiness,
	trust = excluded.trust`,
		snap.SessionID,
		snap.Resources[game.ResourceTech],
		snap.Resources[game.ResourceManpower],
		snap.Resources[game.ResourceEconomy],
		snap.Resources[game.ResourceHappiness],
		snap.Resources[game.ResourceTrust],
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) LoadSnapshot(ctx context.Context, sessionID string) (*game.Snapshot, error) {
	var blob string

	err := s.db.QueryRowContext(
		ctx,
		`SELECT snapshot FROM games WHERE session_id = ?`,
		sessionID,
	).Scan(&blob)

	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	var snap game.Snapshot

	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return nil, fmt.Errorf("快照反序列化失败: %w", err)
	}

	return &snap, nil
}

func (s *Store) RecordVote(ctx context.Context, vote game.Vote) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO votes (session_id, player_id, round, option_id, cast_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session_id, player_id, round) DO UPDATE SET
	option_id = excluded.option_id,
	cast_at = excluded.cast_at
WHERE excluded.cast_at >= votes.cast_at`,
		vote.SessionID, vote.PlayerID, vote.Round, vote.OptionID, toMillis(vote.CastAt),
	)

	return err
}

// VotesForRound 按轮次取回选票记录
func (s *Store) VotesForRound(ctx context.Context, sessionID string, round int) ([]game.Vote, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT player_id, option_id, cast_at FROM votes WHERE session_id = ? AND round = ?`,
		sessionID, round,
	)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []game.Vote

	for rows.Next() {
		vote := game.Vote{SessionID: sessionID, Round: round}

		var castAt int64

		if err := rows.Scan(&vote.PlayerID, &vote.OptionID, &castAt); err != nil {
			return nil, err
		}

		vote.CastAt = time.UnixMilli(castAt).UTC()

		out = append(out, vote)
	}

	return out, rows.Err()
}

func (s *Store) MarkInactive(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE games SET is_active = 0, updated_at = ? WHERE session_id = ?`,
		toMillis(time.Now()), sessionID,
	)

	return err
}

func (s *Store) CodeInUse(ctx context.Context, sessionID string) (bool, error) {
	var count int

	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM games WHERE session_id = ?`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
