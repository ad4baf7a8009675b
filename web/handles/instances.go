package handles

import (
	"net/http"

	"advflow/app/objects"
)

type transitionBody struct {
	// TransitionID may be empty when the current action has exactly one
	// transition out.
	TransitionID string `json:"transition_id"`
	Comment      string `json:"comment" validate:"max=4096"`
	// Version, when set, must match the stored instance.
	Version int `json:"version" validate:"gte=0"`
}

func (h *Handler) instance(req *Request) (*objects.WorkflowInstance, error) {
	return h.engine.Instance(req.Ctx, req.Params.ByName("id"))
}

func (h *Handler) GetInstance(req *Request) (int, interface{}, error) {
	inst, err := h.instance(req)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newInstanceView(inst), nil
}

func (h *Handler) GetHistory(req *Request) (int, interface{}, error) {
	inst, err := h.instance(req)
	if err != nil {
		return 0, nil, err
	}
	history, err := h.engine.History(req.Ctx, inst.ID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newHistoryView(history), nil
}

func (h *Handler) Transition(req *Request) (int, interface{}, error) {
	body := &transitionBody{}
	if err := h.decode(req, body); err != nil {
		return 0, nil, err
	}
	inst, err := h.instance(req)
	if err != nil {
		return 0, nil, err
	}
	if body.Version > 0 {
		// a stale version fails the compare-and-swap in the engine
		inst.Version = body.Version
	}

	var moved *objects.WorkflowInstance
	if body.TransitionID == "" {
		moved, err = h.engine.Perform(req.Ctx, inst, req.Principal, body.Comment)
	} else {
		moved, err = h.engine.PerformTransition(req.Ctx, inst, body.TransitionID, req.Principal, body.Comment)
	}
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newInstanceView(moved), nil
}

func (h *Handler) Cancel(req *Request) (int, interface{}, error) {
	inst, err := h.instance(req)
	if err != nil {
		return 0, nil, err
	}
	cancelled, err := h.engine.Cancel(req.Ctx, inst, req.Principal)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newInstanceView(cancelled), nil
}

func (h *Handler) Pause(req *Request) (int, interface{}, error) {
	return h.toggle(req, "pause")
}

func (h *Handler) Resume(req *Request) (int, interface{}, error) {
	return h.toggle(req, "resume")
}

// toggle pauses or resumes an instance for a principal who may act on it.
func (h *Handler) toggle(req *Request, op string) (int, interface{}, error) {
	inst, err := h.instance(req)
	if err != nil {
		return 0, nil, err
	}
	ok, err := h.engine.Resolver().CanAct(req.Ctx, req.Principal, inst)
	if err != nil {
		return 0, nil, err
	}
	if !ok && !inst.GetStatus().IsTerminal() {
		return 0, nil, &objects.WorkflowError{Kind: objects.ErrUnauthorized, Op: op, InstanceID: inst.ID, Principal: req.Ctx.GetPrincipalID()}
	}

	var result *objects.WorkflowInstance
	if op == "pause" {
		result, err = h.engine.Pause(req.Ctx, inst)
	} else {
		result, err = h.engine.Resume(req.Ctx, inst)
	}
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newInstanceView(result), nil
}
