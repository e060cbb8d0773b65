package maplet

import (
	"cmp"
)

// --------------------------------------------------------------------------
// Merge Operator Interface
// --------------------------------------------------------------------------

// Operator defines how values combine when two inserts land on the same
// slot - either a repeated key or a fingerprint collision between distinct
// keys. The strong maplet guarantee (a query returns the true value merged
// with a geometrically-bounded number of others) only holds when Merge is
// associative and commutative; operators relaxing either must say so via
// the capability flags, and resize order then becomes observable.
type Operator[V any] interface {
	// Identity returns the neutral element: Merge(Identity(), v) == v.
	Identity() V
	// Merge combines two values. The engine stores the result in place of
	// the existing value; an error aborts the insert with MergeFailed and
	// leaves the slot unchanged.
	Merge(a, b V) (V, error)
	// IsAssociative reports whether Merge is associative.
	IsAssociative() bool
	// IsCommutative reports whether Merge is commutative.
	IsCommutative() bool
}

// --------------------------------------------------------------------------
// Counter
// --------------------------------------------------------------------------

// counterOperator sums uint64 values; the classic counting maplet.
type counterOperator struct{}

// NewCounterOperator returns the additive counter operator.
func NewCounterOperator() Operator[uint64] { return counterOperator{} }

func (counterOperator) Identity() uint64 { return 0 }

func (counterOperator) Merge(a, b uint64) (uint64, error) { return a + b, nil }

func (counterOperator) IsAssociative() bool { return true }
func (counterOperator) IsCommutative() bool { return true }

// --------------------------------------------------------------------------
// Set Union
// --------------------------------------------------------------------------

// setOperator unions string sets. Merge never mutates its inputs.
type setOperator struct{}

// NewSetOperator returns the set-union operator.
func NewSetOperator() Operator[map[string]struct{}] { return setOperator{} }

func (setOperator) Identity() map[string]struct{} { return map[string]struct{}{} }

func (setOperator) Merge(a, b map[string]struct{}) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out, nil
}

func (setOperator) IsAssociative() bool { return true }
func (setOperator) IsCommutative() bool { return true }

// --------------------------------------------------------------------------
// Max / Min
// --------------------------------------------------------------------------

type maxOperator[T cmp.Ordered] struct{ identity T }

// NewMaxOperator returns an operator keeping the larger value. The
// identity must be the domain's minimum (e.g. 0 for unsigned counters).
func NewMaxOperator[T cmp.Ordered](identity T) Operator[T] {
	return maxOperator[T]{identity: identity}
}

func (o maxOperator[T]) Identity() T { return o.identity }

func (o maxOperator[T]) Merge(a, b T) (T, error) {
	if a > b {
		return a, nil
	}
	return b, nil
}

func (o maxOperator[T]) IsAssociative() bool { return true }
func (o maxOperator[T]) IsCommutative() bool { return true }

type minOperator[T cmp.Ordered] struct{ identity T }

// NewMinOperator returns an operator keeping the smaller value. The
// identity must be the domain's maximum.
func NewMinOperator[T cmp.Ordered](identity T) Operator[T] {
	return minOperator[T]{identity: identity}
}

func (o minOperator[T]) Identity() T { return o.identity }

func (o minOperator[T]) Merge(a, b T) (T, error) {
	if a < b {
		return a, nil
	}
	return b, nil
}

func (o minOperator[T]) IsAssociative() bool { return true }
func (o minOperator[T]) IsCommutative() bool { return true }

// --------------------------------------------------------------------------
// Last-Write-Wins
// --------------------------------------------------------------------------

// lwwOperator keeps the newer value. Not commutative: resize and replay
// order become observable (documented caller responsibility).
type lwwOperator[V any] struct{}

// NewLWWOperator returns the latest-wins replacement operator.
func NewLWWOperator[V any]() Operator[V] { return lwwOperator[V]{} }

func (lwwOperator[V]) Identity() V { var zero V; return zero }

func (lwwOperator[V]) Merge(a, b V) (V, error) { return b, nil }

func (lwwOperator[V]) IsAssociative() bool { return true }
func (lwwOperator[V]) IsCommutative() bool { return false }

// --------------------------------------------------------------------------
// User-Supplied
// --------------------------------------------------------------------------

// funcOperator wraps caller-provided functions.
type funcOperator[V any] struct {
	identity    func() V
	merge       func(a, b V) (V, error)
	associative bool
	commutative bool
}

// NewFuncOperator builds an operator from plain functions. The caller
// declares the algebraic properties; they are reported verbatim through
// the capability flags.
func NewFuncOperator[V any](
	identity func() V,
	merge func(a, b V) (V, error),
	associative, commutative bool,
) Operator[V] {
	return &funcOperator[V]{
		identity:    identity,
		merge:       merge,
		associative: associative,
		commutative: commutative,
	}
}

func (o *funcOperator[V]) Identity() V { return o.identity() }

func (o *funcOperator[V]) Merge(a, b V) (V, error) { return o.merge(a, b) }

func (o *funcOperator[V]) IsAssociative() bool { return o.associative }
func (o *funcOperator[V]) IsCommutative() bool { return o.commutative }
