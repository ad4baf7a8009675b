package objects

import (
	"advflow/app/db/models"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusPaused    Status = "Paused"
	StatusComplete  Status = "Complete"
	StatusCancelled Status = "Cancelled"
)

// NonTerminalStatuses are the statuses of an instance that still holds its
// target.
var NonTerminalStatuses = []Status{StatusActive, StatusPaused}

func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

type HistoryEvent string

const (
	EventStarted    HistoryEvent = "started"
	EventTransition HistoryEvent = "transition"
	EventCancelled  HistoryEvent = "cancelled"
	EventPaused     HistoryEvent = "paused"
	EventResumed    HistoryEvent = "resumed"

	// EventDeliveryFailed records mail that could not be sent after the
	// transition that produced it committed.
	EventDeliveryFailed HistoryEvent = "delivery_failed"
)

// TargetRef points at the record under workflow.
type TargetRef struct {
	Type string `json:"type" validate:"required"`
	ID   string `json:"id" validate:"required"`
}

func (r TargetRef) String() string {
	return r.Type + ":" + r.ID
}

func (r TargetRef) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

type WorkflowInstance struct {
	*models.WorkflowInstance
}

func NewWorkflowInstance() *WorkflowInstance {
	return &WorkflowInstance{
		WorkflowInstance: &models.WorkflowInstance{},
	}
}

func (i *WorkflowInstance) GetStatus() Status {
	return Status(i.Status)
}

func (i *WorkflowInstance) Target() TargetRef {
	return TargetRef{Type: i.TargetType, ID: i.TargetID}
}

// Clone returns a deep copy; the engine works on clones so a rejected call
// leaves the caller's value untouched.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	row := *i.WorkflowInstance
	if i.FinishedAt != nil {
		finished := *i.FinishedAt
		row.FinishedAt = &finished
	}
	return &WorkflowInstance{WorkflowInstance: &row}
}

// WorkflowActionInstance is one entry of an instance's audit trail.
type WorkflowActionInstance struct {
	*models.WorkflowActionInstance
}

func NewWorkflowActionInstance(instanceID string, event HistoryEvent) *WorkflowActionInstance {
	return &WorkflowActionInstance{
		WorkflowActionInstance: &models.WorkflowActionInstance{
			InstanceID: instanceID,
			Event:      string(event),
		},
	}
}
