package feed

// MutationStatus classifies the outcome of a content mutation.
type MutationStatus string

const (
	// StatusApplied means the mutation was applied and replicated.
	StatusApplied MutationStatus = "applied"
	// StatusAlreadyApplied means the caller had already performed this
	// mutation; the call was an idempotent no-op and no remote calls were
	// made.
	StatusAlreadyApplied MutationStatus = "already_applied"
	// StatusRejected means a business rule rejected the mutation.
	StatusRejected MutationStatus = "rejected"
)

// MutationResult is the outcome of a repost, comment or like operation.
// Applied() preserves the legacy boolean contract: true only for a freshly
// applied mutation.
type MutationResult struct {
	Status MutationStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// Applied reports whether the mutation was freshly applied.
func (r MutationResult) Applied() bool { return r.Status == StatusApplied }

func applied() MutationResult        { return MutationResult{Status: StatusApplied} }
func alreadyApplied() MutationResult { return MutationResult{Status: StatusAlreadyApplied} }
