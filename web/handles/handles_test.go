package handles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"advflow/app/db"
	"advflow/app/db/models"
	"advflow/app/mailer"
	"advflow/app/objects"
	"advflow/app/workflow"
	"advflow/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewYAML = `
title: Page approval
initial: draft
groups: [editors]
actions:
  - name: draft
    title: Draft
    type: approval
  - name: published
    title: Published
    type: publish
transitions:
  - title: approve
    from: draft
    to: published
    guard: approved
  - title: reject
    from: draft
    to: draft
    guard: rejected
`

type testRes struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type apiFixture struct {
	t       *testing.T
	ctx     *contextx.Context
	router  http.Handler
	targets *objects.ContentRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	conn, err := db.Open(&db.Config{
		Connection: "sqlite://" + filepath.Join(t.TempDir(), "api.db"),
		PoolSize:   1,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ctx := contextx.NewContext()
	members := objects.NewMemberDirectory(conn)
	require.NoError(t, members.SaveMember(ctx, &models.Member{ID: "jo", Email: "jo@example.com", FirstName: "Jo"}))
	require.NoError(t, members.SaveMember(ctx, &models.Member{ID: "sam", Email: "sam@example.com", FirstName: "Sam"}))
	require.NoError(t, members.SaveMember(ctx, &models.Member{ID: "root", Email: "root@example.com", Admin: true}))
	require.NoError(t, members.SaveGroup(ctx, &models.Group{ID: "editors", Title: "Editors"}))
	require.NoError(t, members.AddMember(ctx, "editors", "jo"))

	definitions := objects.NewDefinitionStore(conn)
	targets := objects.NewContentRepository(conn)
	svc := workflow.Services{
		Definitions: definitions,
		Instances:   objects.NewInstanceStore(conn),
		Targets:     targets,
		Principals:  members,
		Transport:   mailer.NewLogTransport(),
	}
	engine := workflow.NewEngine(svc, workflow.WithMetrics(workflow.NewMetrics()))
	return &apiFixture{
		t:       t,
		ctx:     ctx,
		router:  NewHandler(engine, svc, definitions).Router(),
		targets: targets,
	}
}

func (f *apiFixture) do(method, path, principal string, body interface{}) (int, *testRes) {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if principal != "" {
		req.Header.Set(HeaderPrincipal, principal)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	res := &testRes{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), res))
	}
	return rec.Code, res
}

func (f *apiFixture) importDefinition() *definitionView {
	code, res := f.do(http.MethodPost, "/definitions", "root", reviewYAML)
	require.Equal(f.t, http.StatusCreated, code, res.Msg)
	def := &definitionView{}
	require.NoError(f.t, json.Unmarshal(res.Data, def))
	return def
}

func (f *apiFixture) createTarget(id string) {
	code, res := f.do(http.MethodPut, "/targets/page/"+id, "jo", map[string]interface{}{
		"title":  "Report " + id,
		"fields": map[string]interface{}{"Content": "draft text"},
	})
	require.Equal(f.t, http.StatusCreated, code, res.Msg)
}

func transitionID(def *definitionView, title string) string {
	for _, t := range def.Transitions {
		if t.Title == title {
			return t.ID
		}
	}
	return ""
}

func TestImportDefinition(t *testing.T) {
	asserter := assert.New(t)
	f := newAPIFixture(t)

	code, res := f.do(http.MethodPost, "/definitions", "jo", reviewYAML)
	asserter.Equal(http.StatusForbidden, code)
	asserter.Equal("Unauthorized", res.Kind)

	code, res = f.do(http.MethodPost, "/definitions", "root", "title: [broken")
	asserter.Equal(http.StatusUnprocessableEntity, code)
	asserter.Equal("DefinitionIntegrityError", res.Kind)

	unknownType := strings.Replace(reviewYAML, "type: publish", "type: teleport", 1)
	code, res = f.do(http.MethodPost, "/definitions", "root", unknownType)
	asserter.Equal(http.StatusUnprocessableEntity, code)
	asserter.Equal("DefinitionIntegrityError", res.Kind)

	def := f.importDefinition()
	asserter.Equal("Page approval", def.Title)
	asserter.Len(def.Actions, 2)
	asserter.Len(def.Transitions, 2)

	code, res = f.do(http.MethodGet, "/definitions/"+def.ID, "", nil)
	if asserter.Equal(http.StatusOK, code) {
		got := &definitionView{}
		if asserter.NoError(json.Unmarshal(res.Data, got)) {
			asserter.Equal(def.InitialActionID, got.InitialActionID)
		}
	}

	code, res = f.do(http.MethodGet, "/definitions/missing", "", nil)
	asserter.Equal(http.StatusNotFound, code)
	asserter.Equal("NotFound", res.Kind)
}

func TestWorkflowLifecycle(t *testing.T) {
	asserter := assert.New(t)
	f := newAPIFixture(t)
	def := f.importDefinition()
	f.createTarget("1")

	code, res := f.do(http.MethodPost, "/targets/page/1/workflow", "jo", nil)
	asserter.Equal(http.StatusNotFound, code, "no definition applies to the target")

	code, res = f.do(http.MethodPost, "/targets/page/1/workflow", "jo", map[string]string{"definition_id": def.ID})
	if !asserter.Equal(http.StatusCreated, code, res.Msg) {
		return
	}
	inst := &instanceView{}
	if !asserter.NoError(json.Unmarshal(res.Data, inst)) {
		return
	}
	asserter.Equal("Page approval - Report 1", inst.Title)
	asserter.Equal(string(objects.StatusActive), inst.Status)
	asserter.Equal(1, inst.Version)

	code, res = f.do(http.MethodPost, "/targets/page/1/workflow", "jo", map[string]string{"definition_id": def.ID})
	asserter.Equal(http.StatusConflict, code)
	asserter.Equal("DuplicateActiveWorkflow", res.Kind)

	code, res = f.do(http.MethodGet, "/targets/page/1/workflow", "jo", nil)
	if asserter.Equal(http.StatusOK, code) {
		view := &targetWorkflowView{}
		if asserter.NoError(json.Unmarshal(res.Data, view)) {
			asserter.True(view.CanEdit)
			asserter.False(view.CanPublish)
			asserter.Len(view.Transitions, 2)
			if asserter.NotNil(view.Instance) {
				asserter.Equal(inst.ID, view.Instance.ID)
			}
		}
	}
	code, res = f.do(http.MethodGet, "/targets/page/1/workflow", "sam", nil)
	if asserter.Equal(http.StatusOK, code) {
		view := &targetWorkflowView{}
		if asserter.NoError(json.Unmarshal(res.Data, view)) {
			asserter.False(view.CanEdit)
			asserter.Empty(view.Transitions)
		}
	}

	code, _ = f.do(http.MethodPut, "/targets/page/1", "sam", map[string]interface{}{"title": "Hijacked"})
	asserter.Equal(http.StatusForbidden, code)
	code, _ = f.do(http.MethodPost, "/targets/page/1/publish", "jo", nil)
	asserter.Equal(http.StatusForbidden, code)

	path := fmt.Sprintf("/instances/%s/transitions", inst.ID)
	approve := transitionID(def, "approve")

	code, res = f.do(http.MethodPost, path, "sam", map[string]interface{}{"transition_id": approve})
	asserter.Equal(http.StatusForbidden, code)
	asserter.Equal("Unauthorized", res.Kind)

	code, res = f.do(http.MethodPost, path, "jo", map[string]interface{}{"transition_id": "nope"})
	asserter.Equal(http.StatusUnprocessableEntity, code)
	asserter.Equal("UnknownTransition", res.Kind)

	code, res = f.do(http.MethodPost, path, "jo", map[string]interface{}{})
	asserter.Equal(http.StatusUnprocessableEntity, code)
	asserter.Equal("AmbiguousTransition", res.Kind)

	code, res = f.do(http.MethodPost, path, "jo", map[string]interface{}{"transition_id": approve, "version": 7})
	asserter.Equal(http.StatusConflict, code)
	asserter.Equal("ConcurrentModification", res.Kind)

	code, res = f.do(http.MethodPost, path, "jo", `{"transition_id": 5}`)
	asserter.Equal(http.StatusBadRequest, code)

	code, res = f.do(http.MethodPost, path, "jo", map[string]interface{}{"transition_id": approve, "comment": "ship it", "version": 1})
	if asserter.Equal(http.StatusOK, code, res.Msg) {
		moved := &instanceView{}
		if asserter.NoError(json.Unmarshal(res.Data, moved)) {
			asserter.Equal(string(objects.StatusComplete), moved.Status)
			asserter.Empty(moved.CurrentActionID)
			asserter.Equal(2, moved.Version)
			asserter.NotNil(moved.FinishedAt)
		}
	}

	code, res = f.do(http.MethodGet, fmt.Sprintf("/instances/%s/history", inst.ID), "", nil)
	if asserter.Equal(http.StatusOK, code) {
		var history []historyView
		if asserter.NoError(json.Unmarshal(res.Data, &history)) && asserter.Len(history, 2) {
			asserter.Equal(string(objects.EventStarted), history[0].Event)
			asserter.Equal(approve, history[1].TransitionID)
			asserter.Equal("ship it", history[1].Comment)
			asserter.Contains(history[1].Outcome, "published")
		}
	}

	target, err := f.targets.Load(f.ctx, objects.TargetRef{Type: "page", ID: "1"})
	if asserter.NoError(err) && asserter.NotNil(target) {
		asserter.Equal("draft text", target.Published.String("Content"))
	}

	code, res = f.do(http.MethodPost, fmt.Sprintf("/instances/%s/cancel", inst.ID), "root", nil)
	asserter.Equal(http.StatusConflict, code)
	asserter.Equal("InstanceNotActive", res.Kind)

	code, res = f.do(http.MethodGet, "/instances/missing", "", nil)
	asserter.Equal(http.StatusNotFound, code)
}

func TestPauseResumeCancel(t *testing.T) {
	asserter := assert.New(t)
	f := newAPIFixture(t)
	def := f.importDefinition()
	f.createTarget("2")

	target, err := f.targets.Load(f.ctx, objects.TargetRef{Type: "page", ID: "2"})
	if !asserter.NoError(err) {
		return
	}
	target.DefinitionID = def.ID
	if !asserter.NoError(f.targets.Save(f.ctx, target)) {
		return
	}

	code, res := f.do(http.MethodPost, "/targets/page/2/workflow", "jo", nil)
	if !asserter.Equal(http.StatusCreated, code, res.Msg) {
		return
	}
	inst := &instanceView{}
	if !asserter.NoError(json.Unmarshal(res.Data, inst)) {
		return
	}
	base := "/instances/" + inst.ID

	code, _ = f.do(http.MethodPost, base+"/pause", "sam", nil)
	asserter.Equal(http.StatusForbidden, code)

	code, res = f.do(http.MethodPost, base+"/pause", "jo", nil)
	if asserter.Equal(http.StatusOK, code) {
		paused := &instanceView{}
		if asserter.NoError(json.Unmarshal(res.Data, paused)) {
			asserter.Equal(string(objects.StatusPaused), paused.Status)
		}
	}
	code, res = f.do(http.MethodPost, base+"/pause", "jo", nil)
	asserter.Equal(http.StatusConflict, code)
	asserter.Equal("InvalidStateTransition", res.Kind)

	code, res = f.do(http.MethodPost, base+"/transitions", "jo", map[string]interface{}{"transition_id": transitionID(def, "reject")})
	asserter.Equal(http.StatusConflict, code)
	asserter.Equal("InstanceNotActive", res.Kind)

	code, _ = f.do(http.MethodPost, base+"/resume", "jo", nil)
	asserter.Equal(http.StatusOK, code)

	code, res = f.do(http.MethodPost, base+"/cancel", "jo", nil)
	asserter.Equal(http.StatusForbidden, code)
	code, res = f.do(http.MethodPost, base+"/cancel", "root", nil)
	if asserter.Equal(http.StatusOK, code) {
		cancelled := &instanceView{}
		if asserter.NoError(json.Unmarshal(res.Data, cancelled)) {
			asserter.Equal(string(objects.StatusCancelled), cancelled.Status)
		}
	}

	code, res = f.do(http.MethodPost, "/targets/page/2/workflow", "jo", nil)
	asserter.Equal(http.StatusCreated, code, res.Msg)
}

func TestUnknownPrincipalAndMetrics(t *testing.T) {
	asserter := assert.New(t)
	f := newAPIFixture(t)

	code, res := f.do(http.MethodGet, "/instances/x", "ghost", nil)
	asserter.Equal(http.StatusForbidden, code)
	asserter.Equal("Unauthorized", res.Kind)

	f.do(http.MethodGet, "/instances/x", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	asserter.Equal(http.StatusOK, rec.Code)
	asserter.Contains(rec.Body.String(), "advflow_")
}

func TestStatusCode(t *testing.T) {
	asserter := assert.New(t)

	cases := map[error]int{
		objects.ErrUnauthorized:            http.StatusForbidden,
		objects.ErrNotFound:                http.StatusNotFound,
		objects.ErrDuplicateActiveWorkflow: http.StatusConflict,
		objects.ErrInstanceNotActive:       http.StatusConflict,
		objects.ErrInvalidStateTransition:  http.StatusConflict,
		objects.ErrConcurrentModification:  http.StatusConflict,
		objects.ErrUnknownTransition:       http.StatusUnprocessableEntity,
		objects.ErrAmbiguousTransition:     http.StatusUnprocessableEntity,
		objects.ErrDefinitionIntegrity:     http.StatusUnprocessableEntity,
		objects.ErrDeliveryFailed:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		asserter.Equal(want, StatusCode(&objects.WorkflowError{Kind: kind, Op: "test"}), kind.Error())
	}
	asserter.Equal(http.StatusBadRequest, StatusCode(&badRequest{err: fmt.Errorf("bad")}))

	// the kind decides, not the wrapped cause
	integrity := &objects.WorkflowError{Kind: objects.ErrDefinitionIntegrity, Op: "resolve definition", Err: objects.ErrNotFound}
	asserter.Equal(http.StatusUnprocessableEntity, StatusCode(integrity))
	asserter.Equal(http.StatusUnprocessableEntity, StatusCode(fmt.Errorf("start: %w", integrity)))
	conflict := &objects.WorkflowError{Kind: objects.ErrConcurrentModification, Op: "approve", Err: objects.ErrNotFound}
	asserter.Equal(http.StatusConflict, StatusCode(conflict))
	asserter.Equal(http.StatusNotFound, StatusCode(fmt.Errorf("load: %w", objects.ErrNotFound)))
}
