package workflow

import (
	"errors"
	"fmt"
	"time"

	"advflow/app/objects"
	"advflow/pkg/contextx"
	"advflow/pkg/log"

	"github.com/google/uuid"
)

const defaultCommentLimit = 10

// Engine advances workflow instances. Every operation runs in one store
// transaction and never mutates the instance it is given.
type Engine struct {
	svc      Services
	registry *Registry
	resolver *Resolver
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*Engine)

func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(svc Services, opts ...Option) *Engine {
	e := &Engine{
		svc:      svc,
		resolver: NewResolver(svc),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	return e
}

func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

func errorKind(err error) string {
	if kind := objects.KindName(err); kind != "" {
		return kind
	}
	return "Error"
}

func principalID(p *objects.Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}

func newError(op string, kind error, inst *objects.WorkflowInstance, format string, args ...interface{}) *objects.WorkflowError {
	we := &objects.WorkflowError{Kind: kind, Op: op}
	if inst != nil {
		we.InstanceID = inst.ID
		we.DefinitionID = inst.DefinitionID
		we.ActionID = inst.CurrentActionID
		we.Target = inst.Target().String()
	}
	if format != "" {
		we.Err = fmt.Errorf(format, args...)
	}
	return we
}

// commitError turns a failed compare-and-set into a ConcurrentModification
// error carrying the instance identifiers.
func commitError(op string, inst *objects.WorkflowInstance, err error) error {
	if errors.Is(err, objects.ErrConcurrentModification) {
		we := newError(op, objects.ErrConcurrentModification, inst, "")
		we.Err = err
		return we
	}
	return err
}

func (e *Engine) definition(ctx *contextx.Context, op string, inst *objects.WorkflowInstance) (*objects.WorkflowDefinition, error) {
	def, err := e.svc.Definitions.Get(ctx, inst.DefinitionID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, newError(op, objects.ErrDefinitionIntegrity, inst, "definition %s not found", inst.DefinitionID)
	}
	return def, nil
}

// apply runs the side effect of action for inst and returns the outcome
// for the audit record. Failures are logged and recorded, never returned.
func (e *Engine) apply(ctx *contextx.Context, box *outbox, def *objects.WorkflowDefinition, inst *objects.WorkflowInstance, action *objects.WorkflowAction, actor *objects.Principal, comment string) string {
	logger := log.GetLogger(ctx, "engine").WithField("workflow", inst.ID)

	handler, err := e.registry.Build(action)
	if err != nil {
		logger.Errorf("build action %s failed, error: %s", action.ID, err.Error())
		e.metrics.sideEffect(action.Type, err)
		return errorKind(err) + ": " + err.Error()
	}

	target, err := e.svc.Targets.Load(ctx, inst.Target())
	if err != nil {
		logger.Warnf("load target %s failed, error: %s", inst.Target(), err.Error())
	}

	outcome, err := handler.Apply(&ActionContext{
		Ctx:        ctx,
		Instance:   inst,
		Definition: def,
		Action:     action,
		Target:     target,
		Actor:      actor,
		Comment:    comment,
		Services:   e.svc,
		Resolver:   e.resolver,
		outbox:     box,
	})
	e.metrics.sideEffect(action.Type, err)
	if err != nil {
		logger.Warnf("action %s (%s) failed, error: %s", action.Title, action.Type, err.Error())
		return errorKind(err) + ": " + err.Error()
	}
	logger.Debugf("action %s (%s) applied: %s", action.Title, action.Type, outcome)
	return outcome
}

// Start runs def against target. The new instance is Active at the initial
// action; an auto-executing initial action is applied right away.
func (e *Engine) Start(ctx *contextx.Context, def *objects.WorkflowDefinition, target *objects.Target, initiator *objects.Principal) (inst *objects.WorkflowInstance, err error) {
	started := time.Now()
	defer func() {
		e.metrics.observe("start", started, err)
	}()

	if err := e.registry.Validate(def); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: "start", DefinitionID: def.ID, Err: errors.New("target not found")}
	}

	ref := target.Ref()
	initial := def.InitialAction()
	terminal := len(def.TransitionsFrom(initial.ID)) == 0
	now := e.now()

	created := objects.NewWorkflowInstance()
	created.ID = uuid.NewString()
	created.DefinitionID = def.ID
	created.Title = def.Title
	if target.Title != "" {
		created.Title = def.Title + " - " + target.Title
	}
	created.TargetType = ref.Type
	created.TargetID = ref.ID
	created.CurrentActionID = initial.ID
	created.Status = string(objects.StatusActive)
	created.InitiatorID = principalID(initiator)
	created.RemindDays = def.RemindDays
	created.CreatedAt = now
	created.LastActivity = now

	box := &outbox{}
	err = e.svc.Instances.Transaction(ctx, func(subCtx *contextx.Context) error {
		existing, err := e.svc.Instances.FindByTarget(subCtx, ref, objects.NonTerminalStatuses...)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			we := newError("start", objects.ErrDuplicateActiveWorkflow, existing[0], "")
			we.Principal = principalID(initiator)
			return we
		}

		if !terminal {
			if err := e.svc.Instances.AcquireTargetLock(subCtx, ref, created.ID); err != nil {
				if errors.Is(err, objects.ErrLockHeld) {
					return &objects.WorkflowError{
						Kind:         objects.ErrDuplicateActiveWorkflow,
						Op:           "start",
						DefinitionID: def.ID,
						Principal:    principalID(initiator),
						Target:       ref.String(),
						Err:          err,
					}
				}
				return err
			}
		}

		if err := e.svc.Instances.Create(subCtx, created); err != nil {
			return err
		}

		rec := objects.NewWorkflowActionInstance(created.ID, objects.EventStarted)
		rec.ActionID = initial.ID
		rec.PrincipalID = principalID(initiator)
		rec.CreatedAt = now

		handler, err := e.registry.Build(initial)
		if err != nil {
			return err
		}
		if handler.AutoExecute() {
			rec.Outcome = e.apply(subCtx, box, def, created.Clone(), initial, initiator, "")
		}

		if terminal {
			created.Status = string(objects.StatusComplete)
			created.CurrentActionID = ""
			created.FinishedAt = &now
			if err := e.svc.Instances.CompareAndSwap(subCtx, created); err != nil {
				return commitError("start", created, err)
			}
		}
		return e.svc.Instances.AppendHistory(subCtx, rec)
	})
	if err != nil {
		return nil, err
	}
	e.flush(ctx, box)

	log.GetLogger(ctx, "engine").WithField("workflow", created.ID).
		Infof("workflow %s started on %s at %s", def.Title, ref, initial.Title)
	return created, nil
}

// PerformTransition moves inst along transitionID on behalf of actor.
func (e *Engine) PerformTransition(ctx *contextx.Context, inst *objects.WorkflowInstance, transitionID string, actor *objects.Principal, comment string) (result *objects.WorkflowInstance, err error) {
	started := time.Now()
	defer func() {
		e.metrics.observe("perform_transition", started, err)
	}()

	const op = "perform transition"
	if inst == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: op, TransitionID: transitionID}
	}
	def, err := e.definition(ctx, op, inst)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, op, def, inst, transitionID, actor, comment)
}

// Perform takes the only transition out of the current action. With more
// than one candidate the caller has to choose: AmbiguousTransition.
func (e *Engine) Perform(ctx *contextx.Context, inst *objects.WorkflowInstance, actor *objects.Principal, comment string) (result *objects.WorkflowInstance, err error) {
	started := time.Now()
	defer func() {
		e.metrics.observe("perform", started, err)
	}()

	const op = "perform"
	if inst == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: op}
	}
	def, err := e.definition(ctx, op, inst)
	if err != nil {
		return nil, err
	}
	if inst.GetStatus() != objects.StatusActive {
		we := newError(op, objects.ErrInstanceNotActive, inst, "status is %s", inst.Status)
		we.Principal = principalID(actor)
		return nil, we
	}

	candidates := def.TransitionsFrom(inst.CurrentActionID)
	switch len(candidates) {
	case 0:
		we := newError(op, objects.ErrUnknownTransition, inst, "no transition leaves the current action")
		we.Principal = principalID(actor)
		return nil, we
	case 1:
		return e.transition(ctx, op, def, inst, candidates[0].ID, actor, comment)
	default:
		we := newError(op, objects.ErrAmbiguousTransition, inst, "%d transitions leave the current action", len(candidates))
		we.Principal = principalID(actor)
		return nil, we
	}
}

func (e *Engine) transition(ctx *contextx.Context, op string, def *objects.WorkflowDefinition, inst *objects.WorkflowInstance, transitionID string, actor *objects.Principal, comment string) (*objects.WorkflowInstance, error) {
	reject := func(kind error, format string, args ...interface{}) error {
		we := newError(op, kind, inst, format, args...)
		we.TransitionID = transitionID
		we.Principal = principalID(actor)
		return we
	}

	if inst.GetStatus() != objects.StatusActive {
		return nil, reject(objects.ErrInstanceNotActive, "status is %s", inst.Status)
	}
	t := def.Transition(transitionID)
	if t == nil || t.SourceActionID != inst.CurrentActionID {
		return nil, reject(objects.ErrUnknownTransition, "transition does not leave the current action")
	}
	allowed, err := e.resolver.canTrigger(ctx, actor, inst, def, t)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, reject(objects.ErrUnauthorized, "principal may not take %q", t.Title)
	}
	action := def.Action(t.TargetActionID)
	if action == nil {
		return nil, reject(objects.ErrDefinitionIntegrity, "target action %s missing", t.TargetActionID)
	}

	now := e.now()
	terminal := len(def.TransitionsFrom(action.ID)) == 0
	source := inst.CurrentActionID

	work := inst.Clone()
	work.CurrentActionID = action.ID
	work.LastActivity = now
	if terminal {
		work.Status = string(objects.StatusComplete)
		work.CurrentActionID = ""
		work.FinishedAt = &now
	}

	box := &outbox{}
	err = e.svc.Instances.Transaction(ctx, func(subCtx *contextx.Context) error {
		if err := e.svc.Instances.CompareAndSwap(subCtx, work); err != nil {
			return commitError(op, inst, err)
		}

		entered := work.Clone()
		entered.CurrentActionID = action.ID

		rec := objects.NewWorkflowActionInstance(work.ID, objects.EventTransition)
		rec.ActionID = source
		rec.TransitionID = t.ID
		rec.TargetActionID = action.ID
		rec.PrincipalID = principalID(actor)
		rec.Comment = comment
		rec.CreatedAt = now
		rec.Outcome = e.apply(subCtx, box, def, entered, action, actor, comment)

		if terminal {
			if err := e.svc.Instances.ReleaseTargetLock(subCtx, work.Target()); err != nil {
				return err
			}
		}
		return e.svc.Instances.AppendHistory(subCtx, rec)
	})
	if err != nil {
		return nil, err
	}
	e.flush(ctx, box)

	log.GetLogger(ctx, "engine").WithField("workflow", work.ID).
		Infof("transition %s taken by %s, now %s at %s", t.Title, principalID(actor), work.Status, action.Title)
	return work, nil
}

// Cancel stops inst for good. Only administrators may cancel.
func (e *Engine) Cancel(ctx *contextx.Context, inst *objects.WorkflowInstance, actor *objects.Principal) (result *objects.WorkflowInstance, err error) {
	started := time.Now()
	defer func() {
		e.metrics.observe("cancel", started, err)
	}()

	const op = "cancel"
	if inst == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: op}
	}
	if !isAdmin(ctx, actor) {
		we := newError(op, objects.ErrUnauthorized, inst, "administrator required")
		we.Principal = principalID(actor)
		return nil, we
	}
	if inst.GetStatus().IsTerminal() {
		we := newError(op, objects.ErrInstanceNotActive, inst, "status is %s", inst.Status)
		we.Principal = principalID(actor)
		return nil, we
	}

	now := e.now()
	work := inst.Clone()
	work.Status = string(objects.StatusCancelled)
	work.CurrentActionID = ""
	work.LastActivity = now
	work.FinishedAt = &now

	err = e.svc.Instances.Transaction(ctx, func(subCtx *contextx.Context) error {
		if err := e.svc.Instances.CompareAndSwap(subCtx, work); err != nil {
			return commitError(op, inst, err)
		}
		if err := e.svc.Instances.ReleaseTargetLock(subCtx, work.Target()); err != nil {
			return err
		}
		rec := objects.NewWorkflowActionInstance(work.ID, objects.EventCancelled)
		rec.ActionID = inst.CurrentActionID
		rec.PrincipalID = principalID(actor)
		rec.CreatedAt = now
		return e.svc.Instances.AppendHistory(subCtx, rec)
	})
	if err != nil {
		return nil, err
	}

	log.GetLogger(ctx, "engine").WithField("workflow", work.ID).Infof("workflow cancelled by %s", principalID(actor))
	return work, nil
}

func (e *Engine) Pause(ctx *contextx.Context, inst *objects.WorkflowInstance) (*objects.WorkflowInstance, error) {
	return e.toggle(ctx, "pause", inst, objects.StatusActive, objects.StatusPaused, objects.EventPaused)
}

func (e *Engine) Resume(ctx *contextx.Context, inst *objects.WorkflowInstance) (*objects.WorkflowInstance, error) {
	return e.toggle(ctx, "resume", inst, objects.StatusPaused, objects.StatusActive, objects.EventResumed)
}

func (e *Engine) toggle(ctx *contextx.Context, op string, inst *objects.WorkflowInstance, from, to objects.Status, event objects.HistoryEvent) (result *objects.WorkflowInstance, err error) {
	started := time.Now()
	defer func() {
		e.metrics.observe(op, started, err)
	}()

	if inst == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: op}
	}
	if inst.GetStatus() != from {
		we := newError(op, objects.ErrInvalidStateTransition, inst, "cannot %s a %s instance", op, inst.Status)
		we.Principal = ctx.GetPrincipalID()
		return nil, we
	}

	now := e.now()
	work := inst.Clone()
	work.Status = string(to)
	work.LastActivity = now

	err = e.svc.Instances.Transaction(ctx, func(subCtx *contextx.Context) error {
		if err := e.svc.Instances.CompareAndSwap(subCtx, work); err != nil {
			return commitError(op, inst, err)
		}
		rec := objects.NewWorkflowActionInstance(work.ID, event)
		rec.ActionID = work.CurrentActionID
		rec.PrincipalID = ctx.GetPrincipalID()
		rec.CreatedAt = now
		return e.svc.Instances.AppendHistory(subCtx, rec)
	})
	if err != nil {
		return nil, err
	}
	return work, nil
}

// Instance loads an instance by id; a missing one is a NotFound error.
func (e *Engine) Instance(ctx *contextx.Context, id string) (*objects.WorkflowInstance, error) {
	inst, err := e.svc.Instances.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: "get instance", InstanceID: id}
	}
	return inst, nil
}

// History returns the audit trail of one instance in execution order.
func (e *Engine) History(ctx *contextx.Context, instanceID string) ([]*objects.WorkflowActionInstance, error) {
	return e.svc.Instances.History(ctx, instanceID)
}

// ActiveInstanceFor returns the Active or Paused instance of ref, nil when
// the target is not under workflow.
func (e *Engine) ActiveInstanceFor(ctx *contextx.Context, ref objects.TargetRef) (*objects.WorkflowInstance, error) {
	found, err := e.svc.Instances.FindByTarget(ctx, ref, objects.NonTerminalStatuses...)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// TargetUpdated tells the current action of target's workflow that the
// target was written, for variants that care.
func (e *Engine) TargetUpdated(ctx *contextx.Context, target *objects.Target) error {
	inst, err := e.ActiveInstanceFor(ctx, target.Ref())
	if err != nil || inst == nil || inst.CurrentActionID == "" {
		return err
	}
	def, err := e.definition(ctx, "target updated", inst)
	if err != nil {
		return err
	}
	action := def.Action(inst.CurrentActionID)
	if action == nil {
		return nil
	}
	handler, err := e.registry.Build(action)
	if err != nil {
		return err
	}
	hook, ok := handler.(TargetUpdatedHandler)
	if !ok {
		return nil
	}

	actor, err := e.svc.Principals.CurrentPrincipal(ctx)
	if err != nil {
		return err
	}
	return hook.TargetUpdated(&ActionContext{
		Ctx:        ctx,
		Instance:   inst.Clone(),
		Definition: def,
		Action:     action,
		Target:     target,
		Actor:      actor,
		Services:   e.svc,
		Resolver:   e.resolver,
	})
}

// HistoryFor returns the newest history records of every instance run on
// ref. limit <= 0 returns everything.
func (e *Engine) HistoryFor(ctx *contextx.Context, ref objects.TargetRef, limit int) ([]*objects.WorkflowActionInstance, error) {
	return e.svc.Instances.HistoryForTarget(ctx, ref, limit)
}

// RecentComment returns the newest record with a comment among the last
// limit records of ref, nil when there is none.
func (e *Engine) RecentComment(ctx *contextx.Context, ref objects.TargetRef, limit int) (*objects.WorkflowActionInstance, error) {
	if limit <= 0 {
		limit = defaultCommentLimit
	}
	history, err := e.HistoryFor(ctx, ref, limit)
	if err != nil {
		return nil, err
	}
	for _, rec := range history {
		if rec.Comment != "" {
			return rec, nil
		}
	}
	return nil, nil
}
