package handles

import (
	"net/http"

	"advflow/app/objects"
)

// ImportDefinition stores a workflow definition authored in YAML. Only
// admins may import.
func (h *Handler) ImportDefinition(req *Request) (int, interface{}, error) {
	if !isAdmin(req) {
		return 0, nil, &objects.WorkflowError{Kind: objects.ErrUnauthorized, Op: "import definition", Principal: req.Ctx.GetPrincipalID()}
	}
	def, err := objects.ParseDefinitionYAML(req.Body)
	if err != nil {
		return 0, nil, err
	}
	if err := h.engine.Registry().Validate(def); err != nil {
		return 0, nil, err
	}
	if err := h.definitions.Save(req.Ctx, def); err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, newDefinitionView(def), nil
}

func (h *Handler) GetDefinition(req *Request) (int, interface{}, error) {
	def, err := h.definition(req, req.Params.ByName("id"))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newDefinitionView(def), nil
}

func (h *Handler) definition(req *Request, id string) (*objects.WorkflowDefinition, error) {
	def, err := h.definitions.Get(req.Ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, &objects.WorkflowError{Kind: objects.ErrNotFound, Op: "get definition", DefinitionID: id}
	}
	return def, nil
}

func isAdmin(req *Request) bool {
	if req.Principal != nil {
		return req.Principal.Admin
	}
	return req.Ctx.IsAdmin()
}
