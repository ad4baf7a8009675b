package objects

import (
	"fmt"
	"sort"

	"advflow/app/db/models"
	"advflow/pkg/gormx"

	"github.com/google/uuid"
)

// WorkflowDefinition is the authored graph: actions connected by transitions.
type WorkflowDefinition struct {
	*models.WorkflowDefinition
	Actions     []*WorkflowAction
	Transitions []*WorkflowTransition
}

type WorkflowAction struct {
	*models.WorkflowAction
}

// HasRestriction reports whether the action names its own users or groups.
func (a *WorkflowAction) HasRestriction() bool {
	return len(a.Users) > 0 || len(a.Groups) > 0
}

type WorkflowTransition struct {
	*models.WorkflowTransition
}

func (t *WorkflowTransition) HasRestriction() bool {
	return len(t.Users) > 0 || len(t.Groups) > 0
}

func NewWorkflowDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		WorkflowDefinition: &models.WorkflowDefinition{},
	}
}

func NewWorkflowAction(title, kind string) *WorkflowAction {
	return &WorkflowAction{
		WorkflowAction: &models.WorkflowAction{
			Title:  title,
			Type:   kind,
			Config: gormx.MapJson{},
		},
	}
}

func NewWorkflowTransition(title string, source, target *WorkflowAction) *WorkflowTransition {
	return &WorkflowTransition{
		WorkflowTransition: &models.WorkflowTransition{
			Title:          title,
			SourceActionID: source.ID,
			TargetActionID: target.ID,
		},
	}
}

func (d *WorkflowDefinition) ensureID() {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
}

// AddAction appends a to the definition, assigning ids and sort order.
func (d *WorkflowDefinition) AddAction(a *WorkflowAction) *WorkflowAction {
	d.ensureID()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.DefinitionID = d.ID
	if a.Sort == 0 {
		a.Sort = len(d.Actions) + 1
	}
	d.Actions = append(d.Actions, a)
	return a
}

// AddTransition appends t; the actions it connects must already be added.
func (d *WorkflowDefinition) AddTransition(t *WorkflowTransition) *WorkflowTransition {
	d.ensureID()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.DefinitionID = d.ID
	if t.Sort == 0 {
		t.Sort = len(d.Transitions) + 1
	}
	d.Transitions = append(d.Transitions, t)
	return t
}

func (d *WorkflowDefinition) Action(id string) *WorkflowAction {
	for _, a := range d.Actions {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (d *WorkflowDefinition) Transition(id string) *WorkflowTransition {
	for _, t := range d.Transitions {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// InitialAction returns the designated initial action. Without an explicit
// designation the first action in sort order starts the workflow.
func (d *WorkflowDefinition) InitialAction() *WorkflowAction {
	if d.InitialActionID != "" {
		return d.Action(d.InitialActionID)
	}
	var first *WorkflowAction
	for _, a := range d.Actions {
		if first == nil || a.Sort < first.Sort {
			first = a
		}
	}
	return first
}

// TransitionsFrom lists the outgoing transitions of an action in sort order.
func (d *WorkflowDefinition) TransitionsFrom(actionID string) []*WorkflowTransition {
	var out []*WorkflowTransition
	for _, t := range d.Transitions {
		if t.SourceActionID == actionID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sort < out[j].Sort
	})
	return out
}

func (d *WorkflowDefinition) integrityError(actionID, transitionID string, format string, args ...interface{}) error {
	return &WorkflowError{
		Kind:         ErrDefinitionIntegrity,
		Op:           "validate definition",
		DefinitionID: d.ID,
		ActionID:     actionID,
		TransitionID: transitionID,
		Err:          fmt.Errorf(format, args...),
	}
}

// Validate checks the graph invariants: a resolvable initial action and
// transitions that stay inside the definition.
func (d *WorkflowDefinition) Validate() error {
	if len(d.Actions) == 0 {
		return d.integrityError("", "", "definition has no actions")
	}

	actionIDs := map[string]bool{}
	for _, a := range d.Actions {
		if a.ID == "" {
			return d.integrityError("", "", "action %q has no id", a.Title)
		}
		if actionIDs[a.ID] {
			return d.integrityError(a.ID, "", "duplicate action id")
		}
		if a.DefinitionID != "" && a.DefinitionID != d.ID {
			return d.integrityError(a.ID, "", "action belongs to definition %s", a.DefinitionID)
		}
		actionIDs[a.ID] = true
	}

	if d.InitialActionID != "" && !actionIDs[d.InitialActionID] {
		return d.integrityError(d.InitialActionID, "", "initial action is not part of the definition")
	}
	if d.InitialAction() == nil {
		return d.integrityError("", "", "initial action missing")
	}

	transitionIDs := map[string]bool{}
	for _, t := range d.Transitions {
		if t.ID == "" {
			return d.integrityError("", "", "transition %q has no id", t.Title)
		}
		if transitionIDs[t.ID] {
			return d.integrityError("", t.ID, "duplicate transition id")
		}
		transitionIDs[t.ID] = true
		if !actionIDs[t.SourceActionID] {
			return d.integrityError(t.SourceActionID, t.ID, "transition source is not part of the definition")
		}
		if !actionIDs[t.TargetActionID] {
			return d.integrityError(t.TargetActionID, t.ID, "transition target is not part of the definition")
		}
	}
	return nil
}

// Replay walks history from the start and returns the action the instance
// should be at, "" once it reached an action without outgoing transitions or
// was cancelled.
func (d *WorkflowDefinition) Replay(history []*WorkflowActionInstance) string {
	current := ""
	for _, rec := range history {
		switch HistoryEvent(rec.Event) {
		case EventStarted:
			current = rec.ActionID
		case EventTransition:
			current = rec.TargetActionID
		case EventCancelled:
			return ""
		default:
			continue
		}
		if current != "" && len(d.TransitionsFrom(current)) == 0 {
			current = ""
		}
	}
	return current
}
