package game

import (
	"testing"
)

func testBaseline() map[string]int {
	return map[string]int{
		ResourceTech:      75,
		ResourceManpower:  60,
		ResourceEconomy:   80,
		ResourceHappiness: 90,
		ResourceTrust:     70,
	}
}

func TestResourceLedger_AppliesOutcomeOnce(t *testing.T) {
	ledger := NewResourceLedger(testBaseline())

	applied := ledger.ApplyOutcome(1, map[string]int{ResourceTech: -10, ResourceTrust: 5})
	if !applied {
		t.Fatalf("first apply for round 1 should succeed")
	}

	if got := ledger.Snapshot()[ResourceTech]; got != 65 {
		t.Fatalf("tech after apply, want 65 got %d", got)
	}

	if got := ledger.Snapshot()[ResourceTrust]; got != 75 {
		t.Fatalf("trust after apply, want 75 got %d", got)
	}

	// 同一轮的第二次应用必须被拒绝，且不改动账本
	if ledger.ApplyOutcome(1, map[string]int{ResourceTech: -10}) {
		t.Fatalf("second apply for round 1 should be rejected")
	}

	if got := ledger.Snapshot()[ResourceTech]; got != 65 {
		t.Fatalf("rejected apply mutated ledger, want 65 got %d", got)
	}

	if !ledger.ApplyOutcome(2, map[string]int{ResourceTech: -5}) {
		t.Fatalf("apply for round 2 should succeed")
	}
}

func TestResourceLedger_ClampsUpperBoundOnly(t *testing.T) {
	ledger := NewResourceLedger(testBaseline())

	ledger.ApplyOutcome(1, map[string]int{
		ResourceHappiness: 40,
		ResourceManpower:  -70,
	})

	values := ledger.Snapshot()

	if values[ResourceHappiness] != 100 {
		t.Fatalf("happiness should clamp to 100, got %d", values[ResourceHappiness])
	}

	// 下界不裁剪，负值保留给枯竭检测
	if values[ResourceManpower] != -10 {
		t.Fatalf("manpower should go negative, want -10 got %d", values[ResourceManpower])
	}
}

func TestResourceLedger_DepletionDetection(t *testing.T) {
	ledger := NewResourceLedger(testBaseline())

	if ledger.IsDepleted() {
		t.Fatalf("fresh ledger should not be depleted")
	}

	ledger.ApplyOutcome(1, map[string]int{ResourceManpower: -60})

	if !ledger.IsDepleted() {
		t.Fatalf("ledger with manpower at 0 should be depleted")
	}

	if got := ledger.DepletedResource(); got != ResourceManpower {
		t.Fatalf("depleted resource, want %s got %s", ResourceManpower, got)
	}
}

func TestResourceLedger_IgnoresUnknownKeys(t *testing.T) {
	ledger := NewResourceLedger(testBaseline())

	ledger.ApplyOutcome(1, map[string]int{"gold": -100, ResourceTech: -5})

	values := ledger.Snapshot()

	if _, ok := values["gold"]; ok {
		t.Fatalf("unknown resource key should not enter the ledger")
	}

	if values[ResourceTech] != 70 {
		t.Fatalf("known key should still apply, want 70 got %d", values[ResourceTech])
	}
}
