package store

// RevisionKind names the collection a revision replaced.
type RevisionKind string

const (
	RevisionSamples RevisionKind = "samples"
	RevisionStatus  RevisionKind = "status"
	RevisionMethods RevisionKind = "methods"
)

// Revision is published after each replacement. Numbers increase
// monotonically across all kinds.
type Revision struct {
	Kind   RevisionKind
	Number uint64
}
