package pipeline

// Stage names reported in results and logs.
const (
	StagePersist      = "persist"
	StageRetrieval    = "retrieval"
	StageGeneration   = "generation"
	StageDelivery     = "delivery"
	StagePersistReply = "persist_reply"
)

// Status is the disposition of one pipeline stage.
type Status string

const (
	// StatusOK means the stage completed normally.
	StatusOK Status = "ok"
	// StatusSkipped means the stage was bypassed; the pipeline degraded
	// and continued.
	StatusSkipped Status = "skipped"
	// StatusFatal means the stage failed in a way that stops the reply.
	StatusFatal Status = "fatal"
)

// Outcome records how one stage of an invocation went.
type Outcome struct {
	Stage  string `json:"stage"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

func ok(stage string) Outcome {
	return Outcome{Stage: stage, Status: StatusOK}
}

func skipped(stage, reason string) Outcome {
	return Outcome{Stage: stage, Status: StatusSkipped, Reason: reason}
}

func fatal(stage string, err error) Outcome {
	return Outcome{Stage: stage, Status: StatusFatal, Err: err}
}

// Trace is the ordered list of stage outcomes for one invocation.
type Trace []Outcome

// Stage returns the outcome for a stage, if the stage ran.
func (t Trace) Stage(name string) (Outcome, bool) {
	for _, o := range t {
		if o.Stage == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Degraded reports whether any stage was skipped.
func (t Trace) Degraded() bool {
	for _, o := range t {
		if o.Status == StatusSkipped {
			return true
		}
	}
	return false
}
