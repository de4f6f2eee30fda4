package assistant

// RunStatus is the lifecycle state of one remote run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Pending reports whether the run may still reach completed.
func (s RunStatus) Pending() bool {
	switch s {
	case RunQueued, RunInProgress, RunCancelling, "":
		return true
	}
	return false
}

// Completed reports whether the run finished with a reply.
func (s RunStatus) Completed() bool {
	return s == RunCompleted
}
