package generator

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyGenerator 先失败 failures 次，之后成功
type flakyGenerator struct {
	failures int
	calls    int
}

func (f *flakyGenerator) GenerateScenario(_ context.Context, _ SessionContext) (*Scenario, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("上游超时")
	}

	return validScenario(), nil
}

func (f *flakyGenerator) GenerateOutcome(_ context.Context, _ SessionContext, _ Option, _ map[string]float64) (*Outcome, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("上游超时")
	}

	return &Outcome{
		Narrative: "generated",
		Deltas:    map[string]int{"tech": -5},
	}, nil
}

func testSessionContext() SessionContext {
	return SessionContext{
		SessionID:   "SESS01",
		Round:       2,
		PlayerCount: 3,
		Resources:   map[string]int{"tech": 70},
	}
}

func TestService_ScenarioRetriesThenSucceeds(t *testing.T) {
	inner := &flakyGenerator{failures: 1}
	svc := NewService(inner, 3, 5*time.Second)

	scenario := svc.Scenario(context.Background(), testSessionContext())

	if scenario == nil {
		t.Fatalf("scenario must never be nil")
	}

	if scenario.Title != "Water Rationing" {
		t.Fatalf("retry should surface the generated scenario, got %q", scenario.Title)
	}

	if inner.calls != 2 {
		t.Fatalf("want 2 calls (1 failure + 1 success), got %d", inner.calls)
	}
}

func TestService_ScenarioFallsBackAfterExhaustion(t *testing.T) {
	inner := &flakyGenerator{failures: 100}
	svc := NewService(inner, 2, 5*time.Second)

	sc := testSessionContext()

	scenario := svc.Scenario(context.Background(), sc)

	if scenario == nil {
		t.Fatalf("scenario must never be nil")
	}

	want := FallbackScenario(sc.Round)
	if scenario.Title != want.Title {
		t.Fatalf("exhausted retries should fall back, want %q got %q", want.Title, scenario.Title)
	}
}

func TestService_OutcomeFallsBackAfterExhaustion(t *testing.T) {
	inner := &flakyGenerator{failures: 100}
	svc := NewService(inner, 2, 5*time.Second)

	sc := testSessionContext()

	outcome := svc.Outcome(context.Background(), sc, Option{ID: "option1", Text: "x"}, nil)

	if outcome == nil {
		t.Fatalf("outcome must never be nil")
	}

	want := FallbackOutcome(sc.Round)
	if outcome.Narrative != want.Narrative {
		t.Fatalf("exhausted retries should fall back to canned outcome")
	}
}

func TestService_OutcomePassesThroughOnSuccess(t *testing.T) {
	inner := &flakyGenerator{}
	svc := NewService(inner, 3, 5*time.Second)

	outcome := svc.Outcome(context.Background(), testSessionContext(), Option{ID: "option1", Text: "x"}, nil)

	if outcome.Narrative != "generated" {
		t.Fatalf("successful generation should pass through, got %q", outcome.Narrative)
	}
}
