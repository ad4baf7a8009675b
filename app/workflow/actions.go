package workflow

import (
	"fmt"
	"sort"
	"sync"

	"advflow/app/objects"
	"advflow/pkg/contextx"
	"advflow/pkg/gormx"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

const (
	ActionApproval = "approval"
	ActionNotify   = "notify"
	ActionPublish  = "publish"
	ActionNoop     = "noop"
)

// ActionContext is what an action variant sees when it is entered.
type ActionContext struct {
	Ctx        *contextx.Context
	Instance   *objects.WorkflowInstance
	Definition *objects.WorkflowDefinition
	Action     *objects.WorkflowAction
	// Target is nil when the target record no longer exists.
	Target  *objects.Target
	Actor   *objects.Principal
	Comment string

	Services Services
	Resolver *Resolver

	outbox *outbox
}

// ActionHandler is one action variant. Apply runs when the action is
// entered and returns a short outcome for the audit trail. An error from
// Apply is recorded, it never undoes the transition.
type ActionHandler interface {
	// AutoExecute reports whether the action also runs when a workflow
	// starts at it.
	AutoExecute() bool
	Apply(actx *ActionContext) (string, error)
}

// TargetUpdatedHandler is implemented by variants that react to writes of
// the target while they are the current action.
type TargetUpdatedHandler interface {
	TargetUpdated(actx *ActionContext) error
}

type NewActionFunc func(config gormx.MapJson) (ActionHandler, error)

// Registry maps action type tags to their constructors.
type Registry struct {
	mu    sync.RWMutex
	types map[string]NewActionFunc
}

var configValidate = validator.New()

// DecodeConfig copies an action's configuration map into out, a pointer to
// a struct with mapstructure tags, and validates it.
func DecodeConfig(config gormx.MapJson, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]interface{}(config)); err != nil {
		return err
	}
	return configValidate.Struct(out)
}

// NewRegistry returns a registry holding the builtin variants.
func NewRegistry() *Registry {
	r := &Registry{types: map[string]NewActionFunc{}}
	r.Register(ActionApproval, NewApprovalAction)
	r.Register(ActionNotify, NewNotifyAction)
	r.Register(ActionPublish, NewPublishAction)
	r.Register(ActionNoop, NewNoopAction)
	return r
}

func (r *Registry) Register(kind string, fn NewActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[kind] = fn
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.types))
	for k := range r.types {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build constructs the handler of action. Unknown types and invalid
// configuration are definition integrity errors.
func (r *Registry) Build(action *objects.WorkflowAction) (ActionHandler, error) {
	r.mu.RLock()
	fn, ok := r.types[action.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, &objects.WorkflowError{
			Kind:         objects.ErrDefinitionIntegrity,
			Op:           "build action",
			DefinitionID: action.DefinitionID,
			ActionID:     action.ID,
			Err:          fmt.Errorf("unknown action type %q", action.Type),
		}
	}
	handler, err := fn(action.Config)
	if err != nil {
		return nil, &objects.WorkflowError{
			Kind:         objects.ErrDefinitionIntegrity,
			Op:           "build action",
			DefinitionID: action.DefinitionID,
			ActionID:     action.ID,
			Err:          fmt.Errorf("invalid %s configuration: %w", action.Type, err),
		}
	}
	return handler, nil
}

// Validate checks the graph and every action's configuration.
func (r *Registry) Validate(def *objects.WorkflowDefinition) error {
	if def == nil {
		return &objects.WorkflowError{Kind: objects.ErrDefinitionIntegrity, Op: "validate definition", Err: objects.ErrNotFound}
	}
	if err := def.Validate(); err != nil {
		return err
	}
	for _, a := range def.Actions {
		if _, err := r.Build(a); err != nil {
			return err
		}
	}
	return nil
}

// ApprovalAction is a gate: nothing happens on entry, the workflow waits
// for an authorized principal to pick a transition.
type ApprovalAction struct{}

func NewApprovalAction(config gormx.MapJson) (ActionHandler, error) {
	return ApprovalAction{}, nil
}

func (ApprovalAction) AutoExecute() bool {
	return false
}

func (ApprovalAction) Apply(actx *ActionContext) (string, error) {
	return "", nil
}

// NoopAction is the placeholder for custom logic with no side effect.
type NoopAction struct{}

func NewNoopAction(config gormx.MapJson) (ActionHandler, error) {
	return NoopAction{}, nil
}

func (NoopAction) AutoExecute() bool {
	return false
}

func (NoopAction) Apply(actx *ActionContext) (string, error) {
	return "", nil
}

type publishConfig struct {
	// RequireDiff skips publishing when the draft equals the live version.
	RequireDiff bool `mapstructure:"require_diff"`
}

// PublishAction copies the target's draft to its published version.
type PublishAction struct {
	config publishConfig
}

func NewPublishAction(config gormx.MapJson) (ActionHandler, error) {
	a := &PublishAction{}
	if err := DecodeConfig(config, &a.config); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *PublishAction) AutoExecute() bool {
	return true
}

func (a *PublishAction) Apply(actx *ActionContext) (string, error) {
	if actx.Target == nil {
		return "", fmt.Errorf("%w: target %s:%s", objects.ErrNotFound, actx.Instance.TargetType, actx.Instance.TargetID)
	}
	ref := actx.Target.Ref()
	if a.config.RequireDiff {
		changes, err := actx.Services.Targets.DiffAgainstDraft(actx.Ctx, ref)
		if err != nil {
			return "", err
		}
		if len(changes) == 0 {
			return "nothing to publish", nil
		}
	}
	if err := actx.Services.Targets.Publish(actx.Ctx, ref); err != nil {
		return "", err
	}
	return "published " + ref.String(), nil
}
