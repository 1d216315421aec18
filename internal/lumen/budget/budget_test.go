package budget_test

import (
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/budget"
	"code.hybscloud.com/lumen/internal/lumen/diag"
)

func TestUnlimitedByDefault(t *testing.T) {
	c := budget.New(0, 0)
	for i := 0; i < 10_000; i++ {
		if err := c.Tick(); err != nil {
			t.Fatalf("unlimited budget exhausted after %d ticks: %v", i, err)
		}
	}
	if err := c.Charge(1 << 30); err != nil {
		t.Fatalf("unlimited memory limit rejected a charge: %v", err)
	}
}

func TestInstructionBudgetExhaustsAtExactCount(t *testing.T) {
	c := budget.New(100, 0)
	ran := 0
	for {
		if err := c.Tick(); err != nil {
			if !diag.Is(err, diag.KindBudgetExceeded) {
				t.Fatalf("got %v, want BudgetExceeded", err)
			}
			break
		}
		ran++
		if ran > 1000 {
			t.Fatal("budget never exhausted")
		}
	}
	if ran != 100 {
		t.Fatalf("got %d instructions run, want exactly 100", ran)
	}
}

func TestMemoryLimitRejectsOverage(t *testing.T) {
	c := budget.New(0, 100)
	if err := c.Charge(60); err != nil {
		t.Fatal(err)
	}
	if err := c.Charge(60); !diag.Is(err, diag.KindAllocationError) {
		t.Fatalf("got %v, want AllocationError", err)
	}
	if err := c.Charge(40); err != nil {
		t.Fatalf("got %v, want the remaining 40 bytes to be chargeable", err)
	}
}

func TestSnapshotRestorePreservesRemainingBudget(t *testing.T) {
	c := budget.New(10, 100)
	for i := 0; i < 4; i++ {
		c.Tick()
	}
	c.Charge(30)

	snap := c.Snapshot()
	restored := budget.Restore(snap)

	if restored.ID != c.ID {
		t.Fatal("expected the restored counter to keep the original execution ID")
	}
	if restored.InstructionsRemaining() != c.InstructionsRemaining() {
		t.Fatalf("got %d, want %d", restored.InstructionsRemaining(), c.InstructionsRemaining())
	}
	if restored.BytesRemaining() != c.BytesRemaining() {
		t.Fatalf("got %d, want %d", restored.BytesRemaining(), c.BytesRemaining())
	}
}
