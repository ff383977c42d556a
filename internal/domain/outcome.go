package domain

// Outcome is the result of submitting one record to the durable store.
type Outcome int

const (
	// OutcomeAccepted means a new row was written.
	OutcomeAccepted Outcome = iota
	// OutcomeDuplicate means the row already existed; counted as success.
	OutcomeDuplicate
	// OutcomeFailed means the retry budget ran out or the store rejected the row.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the record is durably stored.
func (o Outcome) Succeeded() bool {
	return o == OutcomeAccepted || o == OutcomeDuplicate
}

// Tally aggregates outcomes across a file or a pass.
type Tally struct {
	Accepted  int
	Duplicate int
	Failed    int
}

// Add counts one outcome.
func (t *Tally) Add(o Outcome) {
	switch o {
	case OutcomeAccepted:
		t.Accepted++
	case OutcomeDuplicate:
		t.Duplicate++
	default:
		t.Failed++
	}
}

// Merge folds another tally into t.
func (t *Tally) Merge(other Tally) {
	t.Accepted += other.Accepted
	t.Duplicate += other.Duplicate
	t.Failed += other.Failed
}

// Total is the number of records counted.
func (t Tally) Total() int {
	return t.Accepted + t.Duplicate + t.Failed
}
