package domain

// Status is the sync state of a quote. The column doubles as the job queue:
// a quote in one of the pending states is a job waiting for the Executor.
type Status string

const (
	StatusDraft            Status = "Draft"
	StatusPendingAgent     Status = "PENDING_AGENT"
	StatusPendingReimport  Status = "PENDING_REIMPORT"
	StatusPendingDuplicate Status = "PENDING_DUPLICATE"
	StatusPendingRevision  Status = "PENDING_REVISION"
	StatusAgentPicked      Status = "AGENT_PICKED"
	StatusCalculated       Status = "Calculated (Agent)"
	StatusErrorAgent       Status = "ERROR_AGENT"
)

// PendingStatuses lists the states the Dispatcher selects from, in no
// particular order (selection is FIFO by updated_at, not by state).
func PendingStatuses() []Status {
	return []Status{
		StatusPendingAgent,
		StatusPendingReimport,
		StatusPendingDuplicate,
		StatusPendingRevision,
	}
}

// Pending reports whether the status marks the quote as a waiting job.
func (s Status) Pending() bool {
	switch s {
	case StatusPendingAgent, StatusPendingReimport, StatusPendingDuplicate, StatusPendingRevision:
		return true
	}
	return false
}

// transitions is the enumerated state machine. ERROR_AGENT is
// terminal-but-resumable: an operator re-triggers the originating action,
// which re-enters a pending state. There is no automatic retry.
var transitions = map[Status][]Status{
	StatusDraft:            PendingStatuses(),
	StatusCalculated:       PendingStatuses(),
	StatusErrorAgent:       PendingStatuses(),
	StatusPendingAgent:     {StatusAgentPicked, StatusDraft},
	StatusPendingReimport:  {StatusAgentPicked, StatusDraft},
	StatusPendingDuplicate: {StatusAgentPicked, StatusDraft},
	StatusPendingRevision:  {StatusAgentPicked, StatusDraft},
	StatusAgentPicked:      {StatusCalculated, StatusErrorAgent},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobType returns the job kind a pending status maps to.
func (s Status) JobType() (JobType, bool) {
	switch s {
	case StatusPendingAgent:
		return JobTypeCreate, true
	case StatusPendingReimport:
		return JobTypeReimport, true
	case StatusPendingDuplicate:
		return JobTypeDuplicate, true
	case StatusPendingRevision:
		return JobTypeRevise, true
	}
	return "", false
}
