package handles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"

	"advflow/app/objects"
	"advflow/app/workflow"
	"advflow/pkg/contextx"
	"advflow/pkg/log"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderPrincipal = "X-Principal-Id"

	maxBodySize = 1 << 20
)

type Res struct {
	Code int         `json:"code"`
	Msg  string      `json:"message"`
	Kind string      `json:"kind,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// DefinitionStore is the definition storage the API imports into.
type DefinitionStore interface {
	workflow.DefinitionStore
	Save(ctx *contextx.Context, def *objects.WorkflowDefinition) error
}

type Handler struct {
	engine      *workflow.Engine
	svc         workflow.Services
	definitions DefinitionStore
	validate    *validator.Validate
}

func NewHandler(engine *workflow.Engine, svc workflow.Services, definitions DefinitionStore) *Handler {
	return &Handler{
		engine:      engine,
		svc:         svc,
		definitions: definitions,
		validate:    validator.New(),
	}
}

// Router registers every route of the API.
func (h *Handler) Router() *httprouter.Router {
	router := httprouter.New()

	router.POST("/definitions", h.wrap(h.ImportDefinition))
	router.GET("/definitions/:id", h.wrap(h.GetDefinition))

	router.PUT("/targets/:type/:id", h.wrap(h.EditTarget))
	router.POST("/targets/:type/:id/publish", h.wrap(h.PublishTarget))
	router.GET("/targets/:type/:id/workflow", h.wrap(h.TargetWorkflow))
	router.POST("/targets/:type/:id/workflow", h.wrap(h.StartWorkflow))

	router.GET("/instances/:id", h.wrap(h.GetInstance))
	router.GET("/instances/:id/history", h.wrap(h.GetHistory))
	router.POST("/instances/:id/transitions", h.wrap(h.Transition))
	router.POST("/instances/:id/cancel", h.wrap(h.Cancel))
	router.POST("/instances/:id/pause", h.wrap(h.Pause))
	router.POST("/instances/:id/resume", h.wrap(h.Resume))

	if metrics := h.engine.Metrics(); metrics != nil {
		router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return router
}

// Request is what a handle gets to work with: the call context with the
// principal resolved, the route params and the raw body.
type Request struct {
	Ctx       *contextx.Context
	Principal *objects.Principal
	Params    httprouter.Params
	Body      []byte
}

type handle func(req *Request) (int, interface{}, error)

func (h *Handler) wrap(fn handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := contextx.WithContext(r.Context())
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = fmt.Sprintf("wf-req-%s", uuid.NewString())
		}
		ctx.SetRequestID(requestID)
		w.Header().Set(HeaderRequestID, requestID)

		req := &Request{Ctx: ctx, Params: ps}
		if id := r.Header.Get(HeaderPrincipal); id != "" {
			p, err := h.svc.Principals.Principal(ctx, id)
			if err != nil {
				writeError(w, ctx, err)
				return
			}
			if p == nil {
				writeError(w, ctx, &objects.WorkflowError{Kind: objects.ErrUnauthorized, Op: "authenticate", Principal: id})
				return
			}
			ctx.SetPrincipalID(p.ID)
			req.Principal = p
		}

		b, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			log.Errorf(ctx, "Body read error %#v", err)
			writeJSON(w, http.StatusBadRequest, &Res{Code: http.StatusBadRequest, Msg: err.Error()})
			return
		}
		req.Body = b

		code, data, err := fn(req)
		if err != nil {
			writeError(w, ctx, err)
			return
		}
		writeJSON(w, code, &Res{Code: code, Msg: http.StatusText(code), Data: data})
	}
}

// badRequest marks malformed input that never reached the engine.
type badRequest struct {
	err error
}

func (e *badRequest) Error() string {
	return e.err.Error()
}

// decode reads a JSON body into v and validates it. An empty body leaves v
// untouched.
func (h *Handler) decode(req *Request, v interface{}) error {
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, v); err != nil {
			return &badRequest{err: err}
		}
	}
	if err := h.validate.Struct(v); err != nil {
		return &badRequest{err: err}
	}
	return nil
}

// StatusCode maps an error kind onto its HTTP status. A *WorkflowError is
// mapped by its Kind, never by the error it wraps.
func StatusCode(err error) int {
	var bad *badRequest
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}
	kind := err
	var we *objects.WorkflowError
	if errors.As(err, &we) && we.Kind != nil {
		kind = we.Kind
	}
	switch {
	case errors.Is(kind, objects.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(kind, objects.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, objects.ErrDuplicateActiveWorkflow),
		errors.Is(kind, objects.ErrInstanceNotActive),
		errors.Is(kind, objects.ErrInvalidStateTransition),
		errors.Is(kind, objects.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(kind, objects.ErrUnknownTransition),
		errors.Is(kind, objects.ErrAmbiguousTransition),
		errors.Is(kind, objects.ErrDefinitionIntegrity):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, ctx *contextx.Context, err error) {
	code := StatusCode(err)
	res := &Res{Code: code, Msg: err.Error(), Kind: objects.KindName(err)}

	var we *objects.WorkflowError
	if errors.As(err, &we) {
		res.Data = errorView{
			InstanceID:   we.InstanceID,
			DefinitionID: we.DefinitionID,
			ActionID:     we.ActionID,
			TransitionID: we.TransitionID,
			Principal:    we.Principal,
			Target:       we.Target,
		}
	}
	if code >= http.StatusInternalServerError {
		log.Errorf(ctx, "request failed, error: %s", err.Error())
	} else {
		log.Infof(ctx, "request rejected (%d), error: %s", code, err.Error())
	}
	writeJSON(w, code, res)
}

func writeJSON(w http.ResponseWriter, code int, res *Res) {
	b, _ := json.Marshal(res)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
