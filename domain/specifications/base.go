package specifications

// Specification encapsulates a composable business rule over T.
type Specification[T any] interface {
	// IsSatisfiedBy reports whether the candidate passes the rule.
	IsSatisfiedBy(candidate T) bool

	// And combines this rule with another; both must pass.
	And(other Specification[T]) Specification[T]

	// Or combines this rule with another; either may pass.
	Or(other Specification[T]) Specification[T]

	// Not inverts the rule.
	Not() Specification[T]
}

// predicate adapts a plain evaluator function into a Specification.
type predicate[T any] func(T) bool

// NewBaseSpecification wraps an evaluator function as a Specification.
func NewBaseSpecification[T any](eval func(T) bool) Specification[T] {
	return predicate[T](eval)
}

func (p predicate[T]) IsSatisfiedBy(candidate T) bool { return p(candidate) }

func (p predicate[T]) And(other Specification[T]) Specification[T] {
	return predicate[T](func(c T) bool { return p(c) && other.IsSatisfiedBy(c) })
}

func (p predicate[T]) Or(other Specification[T]) Specification[T] {
	return predicate[T](func(c T) bool { return p(c) || other.IsSatisfiedBy(c) })
}

func (p predicate[T]) Not() Specification[T] {
	return predicate[T](func(c T) bool { return !p(c) })
}
