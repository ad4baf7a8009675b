package workflow

import (
	"sort"

	"advflow/app/objects"
	"advflow/pkg/contextx"
	"advflow/pkg/gormx"
)

// Resolver answers who may act on an instance and what may be done to a
// target while it is under workflow.
type Resolver struct {
	svc Services
}

func NewResolver(svc Services) *Resolver {
	return &Resolver{svc: svc}
}

func isAdmin(ctx *contextx.Context, p *objects.Principal) bool {
	if p != nil && p.Admin {
		return true
	}
	return p == nil && ctx != nil && ctx.IsAdmin()
}

// member reports whether p is named in users or belongs to one of groups.
func (r *Resolver) member(ctx *contextx.Context, p *objects.Principal, users, groups gormx.SliceString) (bool, error) {
	if users.Has(p.ID) {
		return true, nil
	}
	if len(groups) == 0 {
		return false, nil
	}
	memberOf, err := r.svc.Principals.GroupsOf(ctx, p.ID)
	if err != nil {
		return false, err
	}
	for _, g := range memberOf {
		if groups.Has(g) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) definition(ctx *contextx.Context, inst *objects.WorkflowInstance) (*objects.WorkflowDefinition, error) {
	def, err := r.svc.Definitions.Get(ctx, inst.DefinitionID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, &objects.WorkflowError{
			Kind:         objects.ErrDefinitionIntegrity,
			Op:           "resolve definition",
			InstanceID:   inst.ID,
			DefinitionID: inst.DefinitionID,
			Err:          objects.ErrNotFound,
		}
	}
	return def, nil
}

// CanAct reports whether p may act on the current action of inst.
func (r *Resolver) CanAct(ctx *contextx.Context, p *objects.Principal, inst *objects.WorkflowInstance) (bool, error) {
	if inst == nil || inst.GetStatus().IsTerminal() {
		return false, nil
	}
	def, err := r.definition(ctx, inst)
	if err != nil {
		return false, err
	}
	return r.canAct(ctx, p, inst, def)
}

func (r *Resolver) canAct(ctx *contextx.Context, p *objects.Principal, inst *objects.WorkflowInstance, def *objects.WorkflowDefinition) (bool, error) {
	if inst.GetStatus().IsTerminal() {
		return false, nil
	}
	if isAdmin(ctx, p) {
		return true, nil
	}
	if p == nil {
		return false, nil
	}
	action := def.Action(inst.CurrentActionID)
	if action != nil && action.HasRestriction() {
		return r.member(ctx, p, action.Users, action.Groups)
	}
	return r.member(ctx, p, def.Users, def.Groups)
}

// CanTrigger reports whether p may take transition t out of the current
// action of inst.
func (r *Resolver) CanTrigger(ctx *contextx.Context, p *objects.Principal, inst *objects.WorkflowInstance, t *objects.WorkflowTransition) (bool, error) {
	def, err := r.definition(ctx, inst)
	if err != nil {
		return false, err
	}
	return r.canTrigger(ctx, p, inst, def, t)
}

func (r *Resolver) canTrigger(ctx *contextx.Context, p *objects.Principal, inst *objects.WorkflowInstance, def *objects.WorkflowDefinition, t *objects.WorkflowTransition) (bool, error) {
	ok, err := r.canAct(ctx, p, inst, def)
	if err != nil || !ok {
		return false, err
	}
	if !t.HasRestriction() || isAdmin(ctx, p) {
		return true, nil
	}
	return r.member(ctx, p, t.Users, t.Groups)
}

func (r *Resolver) activeInstance(ctx *contextx.Context, ref objects.TargetRef) (*objects.WorkflowInstance, error) {
	found, err := r.svc.Instances.FindByTarget(ctx, ref, objects.NonTerminalStatuses...)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// CanEditTarget locks the target during review: while an Active instance
// exists only those who may act on it can edit.
func (r *Resolver) CanEditTarget(ctx *contextx.Context, p *objects.Principal, target *objects.Target) (bool, error) {
	inst, err := r.activeInstance(ctx, target.Ref())
	if err != nil {
		return false, err
	}
	if inst == nil || inst.GetStatus() != objects.StatusActive {
		return true, nil
	}
	return r.CanAct(ctx, p, inst)
}

// CanPublishTarget denies direct publishing of content under workflow. The
// current action may grant it to those who can act.
func (r *Resolver) CanPublishTarget(ctx *contextx.Context, p *objects.Principal, target *objects.Target) (bool, error) {
	inst, err := r.activeInstance(ctx, target.Ref())
	if err != nil {
		return false, err
	}
	if inst != nil {
		if inst.GetStatus() != objects.StatusActive {
			return false, nil
		}
		def, err := r.definition(ctx, inst)
		if err != nil {
			return false, err
		}
		action := def.Action(inst.CurrentActionID)
		if action == nil || !action.AllowPublishing {
			return false, nil
		}
		return r.canAct(ctx, p, inst, def)
	}

	def, err := r.EffectiveDefinitionFor(ctx, target)
	if err != nil {
		return false, err
	}
	return def == nil, nil
}

// EffectiveDefinitionFor returns the definition assigned to target, or to
// its nearest ancestor, nil when none applies.
func (r *Resolver) EffectiveDefinitionFor(ctx *contextx.Context, target *objects.Target) (*objects.WorkflowDefinition, error) {
	seen := map[objects.TargetRef]bool{}
	for current := target; current != nil; {
		ref := current.Ref()
		if seen[ref] {
			return nil, nil
		}
		seen[ref] = true

		if current.DefinitionID != "" {
			def, err := r.svc.Definitions.Get(ctx, current.DefinitionID)
			if err != nil || def != nil {
				return def, err
			}
		}

		parent, err := r.svc.Targets.Parent(ctx, current)
		if err != nil {
			return nil, err
		}
		current = parent
	}
	return nil, nil
}

// AssignedPrincipals lists everyone authorized on the current action of
// inst, falling back to the definition, ordered by id.
func (r *Resolver) AssignedPrincipals(ctx *contextx.Context, inst *objects.WorkflowInstance) ([]*objects.Principal, error) {
	if inst.CurrentActionID == "" {
		return nil, nil
	}
	def, err := r.definition(ctx, inst)
	if err != nil {
		return nil, err
	}

	users, groups := def.Users, def.Groups
	if action := def.Action(inst.CurrentActionID); action != nil && action.HasRestriction() {
		users, groups = action.Users, action.Groups
	}

	byID := map[string]*objects.Principal{}
	for _, id := range users {
		p, err := r.svc.Principals.Principal(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			byID[p.ID] = p
		}
	}
	if len(groups) > 0 {
		members, err := r.svc.Principals.MembersOf(ctx, groups...)
		if err != nil {
			return nil, err
		}
		for _, p := range members {
			byID[p.ID] = p
		}
	}

	out := make([]*objects.Principal, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}
