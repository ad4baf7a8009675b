package workflow

import (
	"advflow/app/mailer"
	"advflow/app/objects"
	"advflow/pkg/contextx"
)

type DefinitionStore interface {
	Get(ctx *contextx.Context, id string) (*objects.WorkflowDefinition, error)
}

// InstanceStore persists instances and their history. CompareAndSwap must
// fail with objects.ErrConcurrentModification when the stored version no
// longer matches.
type InstanceStore interface {
	Transaction(ctx *contextx.Context, fc func(subCtx *contextx.Context) error) error
	Create(ctx *contextx.Context, inst *objects.WorkflowInstance) error
	Get(ctx *contextx.Context, id string) (*objects.WorkflowInstance, error)
	CompareAndSwap(ctx *contextx.Context, inst *objects.WorkflowInstance) error
	FindByTarget(ctx *contextx.Context, ref objects.TargetRef, statuses ...objects.Status) ([]*objects.WorkflowInstance, error)
	FindReminderCandidates(ctx *contextx.Context) ([]*objects.WorkflowInstance, error)
	AppendHistory(ctx *contextx.Context, rec *objects.WorkflowActionInstance) error
	History(ctx *contextx.Context, instanceID string) ([]*objects.WorkflowActionInstance, error)
	HistoryForTarget(ctx *contextx.Context, ref objects.TargetRef, limit int) ([]*objects.WorkflowActionInstance, error)
	AcquireTargetLock(ctx *contextx.Context, ref objects.TargetRef, instanceID string) error
	ReleaseTargetLock(ctx *contextx.Context, ref objects.TargetRef) error
}

type TargetRepository interface {
	Load(ctx *contextx.Context, ref objects.TargetRef) (*objects.Target, error)
	Save(ctx *contextx.Context, t *objects.Target) error
	Parent(ctx *contextx.Context, t *objects.Target) (*objects.Target, error)
	Publish(ctx *contextx.Context, ref objects.TargetRef) error
	DiffAgainstDraft(ctx *contextx.Context, ref objects.TargetRef) ([]objects.FieldChange, error)
}

type PrincipalDirectory interface {
	Principal(ctx *contextx.Context, id string) (*objects.Principal, error)
	CurrentPrincipal(ctx *contextx.Context) (*objects.Principal, error)
	MembersOf(ctx *contextx.Context, groupIDs ...string) ([]*objects.Principal, error)
	GroupsOf(ctx *contextx.Context, principalID string) ([]string, error)
}

// Services are the collaborators the engine works with.
type Services struct {
	Definitions DefinitionStore
	Instances   InstanceStore
	Targets     TargetRepository
	Principals  PrincipalDirectory
	Transport   mailer.Transport
}
