package game

import (
	"testing"
	"time"
)

func castBallot(ctx *GameContext, playerID, optionID string, castAt time.Time) {
	ctx.Votes[playerID] = &Ballot{OptionID: optionID, CastAt: castAt}
	ctx.Players[playerID].HasVoted = true
}

func TestTallyVotes_WeightsByVoteWeight(t *testing.T) {
	ctx := newTestContext()

	ctx.AddPlayer("p1", "Alice", nil)
	ctx.AddPlayer("p2", "Bob", nil)
	ctx.AddPlayer("p3", "Carol", nil)

	// p1 权重减半后，p2+p3 的另一选项应当胜出
	ctx.AdjustWeight("p2", 0.5)
	ctx.AdjustWeight("p3", 0.5)

	base := time.Now()

	castBallot(ctx, "p1", "option1", base)
	castBallot(ctx, "p2", "option2", base.Add(time.Second))
	castBallot(ctx, "p3", "option2", base.Add(2*time.Second))

	tally := TallyVotes(ctx)

	if tally.Counted != 3 {
		t.Fatalf("counted, want 3 got %d", tally.Counted)
	}

	if tally.Totals["option1"] != 1.0 {
		t.Fatalf("option1 total, want 1.0 got %v", tally.Totals["option1"])
	}

	if tally.Totals["option2"] != 1.0 {
		t.Fatalf("option2 total, want 1.0 got %v", tally.Totals["option2"])
	}

	// 平票：option1 的最后一票更早，option1 胜出
	if tally.WinningOption != "option1" {
		t.Fatalf("tie break by earliest last ballot, want option1 got %s", tally.WinningOption)
	}
}

func TestTallyVotes_SkipsEliminatedVoters(t *testing.T) {
	ctx := newTestContext()

	ctx.AddPlayer("p1", "Alice", nil)
	ctx.AddPlayer("p2", "Bob", nil)

	base := time.Now()

	castBallot(ctx, "p1", "option1", base)
	castBallot(ctx, "p2", "option2", base)

	ctx.Eliminate("p2")

	tally := TallyVotes(ctx)

	if tally.Counted != 1 {
		t.Fatalf("eliminated ballot should not count, want 1 got %d", tally.Counted)
	}

	if tally.WinningOption != "option1" {
		t.Fatalf("want option1 got %s", tally.WinningOption)
	}
}

func TestTallyVotes_EmptyRound(t *testing.T) {
	ctx := newTestContext()
	ctx.AddPlayer("p1", "Alice", nil)

	tally := TallyVotes(ctx)

	if tally.WinningOption != "" {
		t.Fatalf("no ballots should produce empty winner, got %q", tally.WinningOption)
	}

	if tally.Counted != 0 {
		t.Fatalf("counted, want 0 got %d", tally.Counted)
	}
}

func TestTallyVotes_TieBreakLexicographic(t *testing.T) {
	ctx := newTestContext()

	ctx.AddPlayer("p1", "Alice", nil)
	ctx.AddPlayer("p2", "Bob", nil)

	same := time.Now()

	castBallot(ctx, "p1", "option2", same)
	castBallot(ctx, "p2", "option1", same)

	tally := TallyVotes(ctx)

	if tally.WinningOption != "option1" {
		t.Fatalf("equal totals and timestamps should break by option id, got %s", tally.WinningOption)
	}
}

func TestDissentStreakPolicy_WarnsThenEliminates(t *testing.T) {
	ctx := newTestContext()

	ctx.AddPlayer("p1", "Alice", nil)
	ctx.AddPlayer("p2", "Bob", nil)
	ctx.AddPlayer("p3", "Carol", nil)

	policy := NewEliminationPolicy("dissent_streak", 2)

	base := time.Now()

	// 第一轮：p3 逆多数，计数 1，权重减半
	castBallot(ctx, "p1", "option1", base)
	castBallot(ctx, "p2", "option1", base)
	castBallot(ctx, "p3", "option2", base)

	eliminated := policy.Apply(ctx, TallyVotes(ctx))
	if len(eliminated) != 0 {
		t.Fatalf("first dissent should only warn, got eliminations %v", eliminated)
	}

	if got := ctx.Players["p3"].VoteWeight; got != 0.5 {
		t.Fatalf("dissenter weight, want 0.5 got %v", got)
	}

	// 第二轮：p3 再次逆多数，达到阈值被淘汰
	ctx.ClearRoundFlags()
	castBallot(ctx, "p1", "option1", base)
	castBallot(ctx, "p2", "option1", base)
	castBallot(ctx, "p3", "option2", base)

	eliminated = policy.Apply(ctx, TallyVotes(ctx))
	if len(eliminated) != 1 || eliminated[0] != "p3" {
		t.Fatalf("second dissent should eliminate p3, got %v", eliminated)
	}

	if !ctx.Players["p3"].IsEliminated {
		t.Fatalf("p3 should be marked eliminated")
	}
}

func TestDissentStreakPolicy_VotingWithMajorityResets(t *testing.T) {
	ctx := newTestContext()

	ctx.AddPlayer("p1", "Alice", nil)
	ctx.AddPlayer("p2", "Bob", nil)
	ctx.AddPlayer("p3", "Carol", nil)

	policy := NewEliminationPolicy("dissent_streak", 2)

	base := time.Now()

	castBallot(ctx, "p1", "option1", base)
	castBallot(ctx, "p2", "option1", base)
	castBallot(ctx, "p3", "option2", base)

	policy.Apply(ctx, TallyVotes(ctx))

	// 回到多数派：计数清零，权重恢复
	ctx.ClearRoundFlags()
	castBallot(ctx, "p1", "option1", base)
	castBallot(ctx, "p2", "option1", base)
	castBallot(ctx, "p3", "option1", base)

	eliminated := policy.Apply(ctx, TallyVotes(ctx))
	if len(eliminated) != 0 {
		t.Fatalf("majority vote should not eliminate, got %v", eliminated)
	}

	if got := ctx.Players["p3"].DissentStreak; got != 0 {
		t.Fatalf("streak should reset, got %d", got)
	}

	if got := ctx.Players["p3"].VoteWeight; got != 1.0 {
		t.Fatalf("weight should restore to 1.0, got %v", got)
	}
}

func TestNewEliminationPolicy_UnknownFallsBackToNone(t *testing.T) {
	policy := NewEliminationPolicy("sudden_death", 3)

	if policy.Name() != "none" {
		t.Fatalf("unknown policy should fall back to none, got %s", policy.Name())
	}
}
