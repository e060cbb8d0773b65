package maplet

import (
	"errors"
	"reflect"
	"testing"
)

func TestCounterOperator(t *testing.T) {
	op := NewCounterOperator()

	if op.Identity() != 0 {
		t.Error("counter identity must be 0")
	}
	if v, _ := op.Merge(2, 3); v != 5 {
		t.Errorf("Merge(2,3) = %d", v)
	}
	if !op.IsAssociative() || !op.IsCommutative() {
		t.Error("counter must be associative and commutative")
	}
}

func TestSetOperator(t *testing.T) {
	op := NewSetOperator()

	a := map[string]struct{}{"x": {}, "y": {}}
	b := map[string]struct{}{"y": {}, "z": {}}

	merged, err := op.Merge(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]struct{}{"x": {}, "y": {}, "z": {}}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("Merge = %v, want %v", merged, want)
	}

	// inputs must stay untouched
	if len(a) != 2 || len(b) != 2 {
		t.Error("Merge mutated its inputs")
	}
}

func TestMaxMinOperators(t *testing.T) {
	max := NewMaxOperator[uint64](0)
	if v, _ := max.Merge(10, 5); v != 10 {
		t.Errorf("max Merge(10,5) = %d", v)
	}

	min := NewMinOperator[int](1 << 30)
	if v, _ := min.Merge(10, 5); v != 5 {
		t.Errorf("min Merge(10,5) = %d", v)
	}
	if v, _ := min.Merge(min.Identity(), 42); v != 42 {
		t.Errorf("min identity does not behave neutrally: %d", v)
	}
}

func TestLWWOperator(t *testing.T) {
	op := NewLWWOperator[string]()
	if v, _ := op.Merge("old", "new"); v != "new" {
		t.Errorf("lww Merge = %q", v)
	}
	if op.IsCommutative() {
		t.Error("last-write-wins must not claim commutativity")
	}
}

func TestFuncOperator(t *testing.T) {
	fail := errors.New("merge failed")
	op := NewFuncOperator[int](
		func() int { return 0 },
		func(a, b int) (int, error) {
			if b < 0 {
				return 0, fail
			}
			return a ^ b, nil
		},
		true, true,
	)

	if v, err := op.Merge(5, 3); err != nil || v != 6 {
		t.Errorf("Merge(5,3) = (%d, %v)", v, err)
	}
	if _, err := op.Merge(1, -1); !errors.Is(err, fail) {
		t.Errorf("expected operator error, got %v", err)
	}
}

func TestMergeFailureLeavesEngineUnchanged(t *testing.T) {
	op := NewFuncOperator[int](
		func() int { return 0 },
		func(a, b int) (int, error) {
			if b == 13 {
				return 0, errors.New("unlucky")
			}
			return a + b, nil
		},
		true, true,
	)

	cfg := DefaultConfig()
	cfg.HasherSeed = 99
	m, err := New[int](op, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.Insert("k", 7); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert("k", 13); CodeOf(err) != RetCMergeFailed {
		t.Fatalf("expected MergeFailed, got %v", err)
	}
	if v, _ := m.Query("k"); v != 7 {
		t.Errorf("failed merge changed the stored value: %d", v)
	}
	if m.Len() != 1 {
		t.Errorf("failed merge changed len: %d", m.Len())
	}
}
