package outcome

type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Result records the classification of one record's enrichment attempt.
type Result struct {
	Term   string `json:"term"`
	BookID string `json:"book_id"`
	Status Status `json:"status"`
	// Author is set only when Status is ok.
	Author string `json:"author,omitempty"`
	// Message carries the diagnostic label for error outcomes.
	Message string `json:"message,omitempty"`
}

// Tally counts outcomes by status for one query-term batch.
// Accumulation is commutative, so completion order never changes the tally.
type Tally map[Status]int

func NewTally() Tally {
	return make(Tally)
}

func (t Tally) Add(s Status) {
	t[s]++
}

func (t Tally) Get(s Status) int {
	return t[s]
}

func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}
