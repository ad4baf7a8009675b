package workflow

import (
	"path/filepath"
	"testing"
	"time"

	"advflow/app/db"
	"advflow/app/db/models"
	"advflow/app/mailer"
	"advflow/app/objects"
	"advflow/pkg/contextx"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	t         *testing.T
	ctx       *contextx.Context
	engine    *Engine
	svc       Services
	defs      *objects.DefinitionStore
	instances *objects.InstanceStore
	targets   *objects.ContentRepository
	members   *objects.MemberDirectory
	mail      *mailer.LogTransport
	clock     time.Time

	jo, sam, admin *objects.Principal
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	conn, err := db.Open(&db.Config{
		Connection: "sqlite://" + filepath.Join(t.TempDir(), "workflow.db"),
		PoolSize:   1,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{
		t:         t,
		ctx:       contextx.NewContext(),
		defs:      objects.NewDefinitionStore(conn),
		instances: objects.NewInstanceStore(conn),
		targets:   objects.NewContentRepository(conn),
		members:   objects.NewMemberDirectory(conn),
		mail:      mailer.NewLogTransport(),
		clock:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = Services{
		Definitions: f.defs,
		Instances:   f.instances,
		Targets:     f.targets,
		Principals:  f.members,
		Transport:   f.mail,
	}
	opts = append([]Option{WithClock(func() time.Time { return f.clock })}, opts...)
	f.engine = NewEngine(f.svc, opts...)

	require.NoError(t, f.members.SaveMember(f.ctx, &models.Member{ID: "jo", Email: "jo@example.com", FirstName: "Jo"}))
	require.NoError(t, f.members.SaveMember(f.ctx, &models.Member{ID: "sam", Email: "sam@example.com", FirstName: "Sam"}))
	require.NoError(t, f.members.SaveMember(f.ctx, &models.Member{ID: "root", Email: "root@example.com", FirstName: "Root", Admin: true}))
	require.NoError(t, f.members.SaveGroup(f.ctx, &models.Group{ID: "editors", Title: "Editors"}))
	require.NoError(t, f.members.AddMember(f.ctx, "editors", "jo"))

	f.jo = f.principal("jo")
	f.sam = f.principal("sam")
	f.admin = f.principal("root")
	return f
}

func (f *fixture) principal(id string) *objects.Principal {
	p, err := f.members.Principal(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, p)
	return p
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) save(def *objects.WorkflowDefinition) *objects.WorkflowDefinition {
	require.NoError(f.t, f.defs.Save(f.ctx, def))
	return def
}

func (f *fixture) target(id, title string) *objects.Target {
	target := objects.NewTarget(objects.TargetRef{Type: "page", ID: id}, title)
	target.Fields["Content"] = "draft text"
	require.NoError(f.t, f.targets.Save(f.ctx, target))
	return target
}

func (f *fixture) history(inst *objects.WorkflowInstance) []*objects.WorkflowActionInstance {
	history, err := f.instances.History(f.ctx, inst.ID)
	require.NoError(f.t, err)
	return history
}

// reviewDefinition is the Draft approve/reject graph: approve enters
// Published, reject loops back to Draft. Editors may act.
func reviewDefinition() *objects.WorkflowDefinition {
	def := objects.NewWorkflowDefinition()
	def.Title = "Page approval"
	def.Groups = []string{"editors"}
	draft := def.AddAction(objects.NewWorkflowAction("Draft", ActionApproval))
	published := def.AddAction(objects.NewWorkflowAction("Published", ActionPublish))
	def.InitialActionID = draft.ID
	def.AddTransition(objects.NewWorkflowTransition("approve", draft, published)).Guard = "approved"
	def.AddTransition(objects.NewWorkflowTransition("reject", draft, draft)).Guard = "rejected"
	return def
}

func transitionByTitle(def *objects.WorkflowDefinition, title string) *objects.WorkflowTransition {
	for _, t := range def.Transitions {
		if t.Title == title {
			return t
		}
	}
	return nil
}

func actionByTitle(def *objects.WorkflowDefinition, title string) *objects.WorkflowAction {
	for _, a := range def.Actions {
		if a.Title == title {
			return a
		}
	}
	return nil
}
