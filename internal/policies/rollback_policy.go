package policies

// RollbackScope decides how far a batch unwinds after an install
// failure.
type RollbackScope string

const (
	// RollbackScopeFailedOnly undoes only the failing component.
	// Completed siblings stay installed; unattempted dependents are
	// skipped, not rolled back.
	RollbackScopeFailedOnly RollbackScope = "failed_only"

	// RollbackScopeStrict additionally unwinds every component this
	// batch completed, in reverse install order, and stops scheduling
	// further work. For callers that want all-or-nothing batches.
	RollbackScopeStrict RollbackScope = "strict"
)

type RollbackPolicy struct {
	Scope RollbackScope
}

func NewRollbackPolicy(strict bool) RollbackPolicy {
	if strict {
		return RollbackPolicy{Scope: RollbackScopeStrict}
	}
	return RollbackPolicy{Scope: RollbackScopeFailedOnly}
}

// Cascade reports whether an install failure should also unwind the
// batch's previously completed components.
func (p RollbackPolicy) Cascade() bool {
	return p.Scope == RollbackScopeStrict
}
