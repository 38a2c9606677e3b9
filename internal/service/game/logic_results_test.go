package game

import (
	"testing"

	"project-oversight-be/internal/generator"
)

func resultsContext() (*GameContext, *resultsStageHandler) {
	ctx := newTestContext()
	ctx.HostID = "p1"
	ctx.Phase = STAGE_RESULTS
	ctx.Scenario = testScenario()
	ctx.LastTally = &TallyResult{
		Totals:        map[string]float64{"option1": 2},
		WinningOption: "option1",
		Counted:       2,
	}

	ctx.AddPlayer("p1", "Alice", nil)
	ctx.AddPlayer("p2", "Bob", nil)

	rsh := NewResultsStageHandler()
	rsh.SetOnSwitch(func(next string) { ctx.Phase = next })

	return ctx, rsh
}

func advanceAs(rsh *resultsStageHandler, ctx *GameContext, playerID string) error {
	return rsh.OnHandle(ctx, RequestWrapper{
		ReqType: REQ_ADVANCE_ROUND,
		Data:    mustMarshal(AdvanceRoundRequest{PlayerID: playerID}),
	})
}

func TestResultsStageHandler_AdvanceBlockedWhileResolving(t *testing.T) {
	ctx, rsh := resultsContext()
	ctx.Resolving = true

	if err := advanceAs(rsh, ctx, "p1"); err != ErrPhaseBusy {
		t.Fatalf("advance during resolution, want ErrPhaseBusy got: %v", err)
	}

	if ctx.Phase != STAGE_RESULTS {
		t.Fatalf("blocked advance changed phase to %s", ctx.Phase)
	}
}

func TestResultsStageHandler_AdvanceIsHostOnly(t *testing.T) {
	ctx, rsh := resultsContext()

	if err := advanceAs(rsh, ctx, "p2"); err != ErrNotHost {
		t.Fatalf("non-host advance, want ErrNotHost got: %v", err)
	}
}

func TestResultsStageHandler_AdvanceStartsNextRound(t *testing.T) {
	ctx, rsh := resultsContext()

	if err := advanceAs(rsh, ctx, "p1"); err != nil {
		t.Fatalf("host advance should succeed, got: %v", err)
	}

	if ctx.Round != 2 {
		t.Fatalf("round, want 2 got %d", ctx.Round)
	}

	if ctx.Phase != STAGE_SCENARIO_LOADING {
		t.Fatalf("advance should enter scenario loading, phase %s", ctx.Phase)
	}
}

func TestResultsStageHandler_TerminationOrder(t *testing.T) {
	// 资源枯竭优先于轮数耗尽
	ctx, rsh := resultsContext()
	ctx.Round = ctx.Rules.MaxRounds
	ctx.Ledger.ApplyOutcome(ctx.Round, map[string]int{ResourceTrust: -100})

	if err := advanceAs(rsh, ctx, "p1"); err != nil {
		t.Fatalf("advance should succeed, got: %v", err)
	}

	if ctx.Phase != STAGE_GAME_OVER {
		t.Fatalf("depleted session should end, phase %s", ctx.Phase)
	}

	if ctx.EndReason != END_RESOURCE_DEPLETION {
		t.Fatalf("end reason, want %s got %s", END_RESOURCE_DEPLETION, ctx.EndReason)
	}

	// 淘汰后仅剩一名投票者同样终局
	ctx, rsh = resultsContext()
	ctx.Eliminate("p2")

	if err := advanceAs(rsh, ctx, "p1"); err != nil {
		t.Fatalf("advance should succeed, got: %v", err)
	}

	if ctx.EndReason != END_ELIMINATION {
		t.Fatalf("end reason, want %s got %s", END_ELIMINATION, ctx.EndReason)
	}

	// 轮数耗尽兜底
	ctx, rsh = resultsContext()
	ctx.Round = ctx.Rules.MaxRounds

	if err := advanceAs(rsh, ctx, "p1"); err != nil {
		t.Fatalf("advance should succeed, got: %v", err)
	}

	if ctx.EndReason != END_ROUNDS_EXHAUSTED {
		t.Fatalf("end reason, want %s got %s", END_ROUNDS_EXHAUSTED, ctx.EndReason)
	}
}

func TestResultsStageHandler_StaleOutcomeEventDropped(t *testing.T) {
	ctx, rsh := resultsContext()
	ctx.Round = 2
	ctx.Resolving = true

	stale := RequestWrapper{
		ReqType: REQ_OUTCOME_READY,
		NativeData: &OutcomeReadyEvent{
			Round: 1,
			Outcome: &generator.Outcome{
				Narrative: "old news",
				Deltas:    map[string]int{ResourceTech: -50},
			},
		},
	}

	if err := rsh.OnHandle(ctx, stale); err != nil {
		t.Fatalf("stale outcome event should be a no-op, got: %v", err)
	}

	if ctx.LastOutcome != nil {
		t.Fatalf("stale outcome should not be applied")
	}

	if !ctx.Resolving {
		t.Fatalf("stale outcome should not clear the resolving flag")
	}

	current := RequestWrapper{
		ReqType: REQ_OUTCOME_READY,
		NativeData: &OutcomeReadyEvent{
			Round: 2,
			Outcome: &generator.Outcome{
				Narrative: "The reroute holds, barely.",
				Deltas:    map[string]int{ResourceTech: -10},
			},
		},
	}

	if err := rsh.OnHandle(ctx, current); err != nil {
		t.Fatalf("current outcome event should apply, got: %v", err)
	}

	if ctx.LastOutcome == nil || ctx.LastOutcome.Narrative != "The reroute holds, barely." {
		t.Fatalf("current outcome not applied")
	}

	if ctx.Resolving {
		t.Fatalf("applied outcome should clear the resolving flag")
	}

	if got := ctx.Ledger.Snapshot()[ResourceTech]; got != 65 {
		t.Fatalf("deltas not applied, want tech 65 got %d", got)
	}
}

func TestApplyOutcome_SecondApplySameRoundRejected(t *testing.T) {
	ctx, _ := resultsContext()

	outcome := &generator.Outcome{
		Narrative: "first",
		Deltas:    map[string]int{ResourceEconomy: -20},
	}

	applyOutcome(ctx, 1, outcome, *ctx.LastTally)

	if got := ctx.Ledger.Snapshot()[ResourceEconomy]; got != 60 {
		t.Fatalf("economy after first apply, want 60 got %d", got)
	}

	// 同一轮的重复结算被账本拒绝，LastOutcome 保持第一次的值
	applyOutcome(ctx, 1, &generator.Outcome{
		Narrative: "second",
		Deltas:    map[string]int{ResourceEconomy: -20},
	}, *ctx.LastTally)

	if got := ctx.Ledger.Snapshot()[ResourceEconomy]; got != 60 {
		t.Fatalf("duplicate apply mutated ledger, want 60 got %d", got)
	}

	if ctx.LastOutcome.Narrative != "first" {
		t.Fatalf("duplicate apply replaced LastOutcome")
	}
}

// 新一轮的加载阶段不得带着上一轮的计票与结算进快照
func TestLoadingStageHandler_ClearsPreviousRoundResults(t *testing.T) {
	ctx, _ := resultsContext()
	ctx.Gen = stubContent{}
	ctx.EvCh = make(chan RequestWrapper, 4)
	ctx.Round = 2
	ctx.LastOutcome = &generator.Outcome{
		Narrative: "last round",
		Deltas:    map[string]int{},
	}

	lsh := NewLoadingStageHandler()
	lsh.SetOnSwitch(func(next string) { ctx.Phase = next })
	lsh.OnEnter(ctx)

	if ctx.LastOutcome != nil || ctx.LastTally != nil {
		t.Fatalf("entering loading must drop the previous round's tally and outcome")
	}

	if ctx.Scenario != nil {
		t.Fatalf("entering loading must drop the previous round's scenario")
	}
}
