package handles

import (
	"net/http"

	"advflow/app/objects"
	"advflow/pkg/gormx"
)

type editTargetBody struct {
	Title  string                 `json:"title" validate:"required"`
	Fields map[string]interface{} `json:"fields"`
}

type startBody struct {
	DefinitionID string `json:"definition_id"`
}

func targetRef(req *Request) objects.TargetRef {
	return objects.TargetRef{Type: req.Params.ByName("type"), ID: req.Params.ByName("id")}
}

func (h *Handler) target(req *Request) (*objects.Target, error) {
	ref := targetRef(req)
	target, err := h.svc.Targets.Load(req.Ctx, ref)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: "load target", Target: ref.String()}
	}
	return target, nil
}

// EditTarget saves the draft of a target, creating it when absent. While
// the target is under review only those who may act on it can edit.
func (h *Handler) EditTarget(req *Request) (int, interface{}, error) {
	body := &editTargetBody{}
	if err := h.decode(req, body); err != nil {
		return 0, nil, err
	}

	ref := targetRef(req)
	target, err := h.svc.Targets.Load(req.Ctx, ref)
	if err != nil {
		return 0, nil, err
	}
	code := http.StatusOK
	if target == nil {
		target = objects.NewTarget(ref, body.Title)
		code = http.StatusCreated
	} else {
		ok, err := h.engine.Resolver().CanEditTarget(req.Ctx, req.Principal, target)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			return 0, nil, &objects.WorkflowError{Kind: objects.ErrUnauthorized, Op: "edit target", Principal: req.Ctx.GetPrincipalID(), Target: ref.String()}
		}
	}

	target.Title = body.Title
	if target.Fields == nil {
		target.Fields = gormx.MapJson{}
	}
	for k, v := range body.Fields {
		target.Fields[k] = v
	}
	if err := h.svc.Targets.Save(req.Ctx, target); err != nil {
		return 0, nil, err
	}
	if err := h.engine.TargetUpdated(req.Ctx, target); err != nil {
		return 0, nil, err
	}
	return code, target.ContextFields(), nil
}

// PublishTarget copies the draft of a target to its published state.
func (h *Handler) PublishTarget(req *Request) (int, interface{}, error) {
	target, err := h.target(req)
	if err != nil {
		return 0, nil, err
	}
	ok, err := h.engine.Resolver().CanPublishTarget(req.Ctx, req.Principal, target)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, &objects.WorkflowError{Kind: objects.ErrUnauthorized, Op: "publish target", Principal: req.Ctx.GetPrincipalID(), Target: target.Ref().String()}
	}
	if err := h.svc.Targets.Publish(req.Ctx, target.Ref()); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, target.ContextFields(), nil
}

// TargetWorkflow reports the workflow state of a target as the calling
// principal sees it.
func (h *Handler) TargetWorkflow(req *Request) (int, interface{}, error) {
	target, err := h.target(req)
	if err != nil {
		return 0, nil, err
	}
	resolver := h.engine.Resolver()

	view := &targetWorkflowView{Transitions: []transitionView{}}
	if view.CanEdit, err = resolver.CanEditTarget(req.Ctx, req.Principal, target); err != nil {
		return 0, nil, err
	}
	if view.CanPublish, err = resolver.CanPublishTarget(req.Ctx, req.Principal, target); err != nil {
		return 0, nil, err
	}

	inst, err := h.engine.ActiveInstanceFor(req.Ctx, target.Ref())
	if err != nil {
		return 0, nil, err
	}
	var def *objects.WorkflowDefinition
	if inst != nil {
		view.Instance = newInstanceView(inst)
		if def, err = h.definitions.Get(req.Ctx, inst.DefinitionID); err != nil {
			return 0, nil, err
		}
	} else if def, err = resolver.EffectiveDefinitionFor(req.Ctx, target); err != nil {
		return 0, nil, err
	}
	if def == nil {
		return http.StatusOK, view, nil
	}
	view.Definition = newDefinitionView(def)

	if inst != nil && inst.GetStatus() == objects.StatusActive {
		for _, t := range def.TransitionsFrom(inst.CurrentActionID) {
			ok, err := resolver.CanTrigger(req.Ctx, req.Principal, inst, t)
			if err != nil {
				return 0, nil, err
			}
			if ok {
				view.Transitions = append(view.Transitions, newTransitionView(t))
			}
		}
	}
	return http.StatusOK, view, nil
}

// StartWorkflow puts a target under workflow, with the definition named in
// the body or the one the target inherits.
func (h *Handler) StartWorkflow(req *Request) (int, interface{}, error) {
	body := &startBody{}
	if err := h.decode(req, body); err != nil {
		return 0, nil, err
	}
	target, err := h.target(req)
	if err != nil {
		return 0, nil, err
	}

	var def *objects.WorkflowDefinition
	if body.DefinitionID != "" {
		def, err = h.definition(req, body.DefinitionID)
	} else {
		def, err = h.engine.Resolver().EffectiveDefinitionFor(req.Ctx, target)
		if err == nil && def == nil {
			err = &objects.WorkflowError{Kind: objects.ErrNotFound, Op: "start", Target: target.Ref().String()}
		}
	}
	if err != nil {
		return 0, nil, err
	}

	inst, err := h.engine.Start(req.Ctx, def, target, req.Principal)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, newInstanceView(inst), nil
}
