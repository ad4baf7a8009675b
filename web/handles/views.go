package handles

import (
	"time"

	"advflow/app/objects"
)

type errorView struct {
	InstanceID   string `json:"instance_id,omitempty"`
	DefinitionID string `json:"definition_id,omitempty"`
	ActionID     string `json:"action_id,omitempty"`
	TransitionID string `json:"transition_id,omitempty"`
	Principal    string `json:"principal,omitempty"`
	Target       string `json:"target,omitempty"`
}

type actionView struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Type            string                 `json:"type"`
	AllowPublishing bool                   `json:"allow_publishing"`
	Users           []string               `json:"users,omitempty"`
	Groups          []string               `json:"groups,omitempty"`
	Config          map[string]interface{} `json:"config,omitempty"`
}

type transitionView struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Guard  string   `json:"guard,omitempty"`
	Users  []string `json:"users,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

type definitionView struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	InitialActionID string           `json:"initial_action_id"`
	RemindDays      int              `json:"remind_days"`
	Users           []string         `json:"users,omitempty"`
	Groups          []string         `json:"groups,omitempty"`
	Actions         []actionView     `json:"actions"`
	Transitions     []transitionView `json:"transitions"`
}

func newDefinitionView(def *objects.WorkflowDefinition) *definitionView {
	v := &definitionView{
		ID:              def.ID,
		Title:           def.Title,
		Description:     def.Description,
		InitialActionID: def.InitialAction().ID,
		RemindDays:      def.RemindDays,
		Users:           def.Users,
		Groups:          def.Groups,
		Actions:         []actionView{},
		Transitions:     []transitionView{},
	}
	for _, a := range def.Actions {
		v.Actions = append(v.Actions, actionView{
			ID:              a.ID,
			Title:           a.Title,
			Type:            a.Type,
			AllowPublishing: a.AllowPublishing,
			Users:           a.Users,
			Groups:          a.Groups,
			Config:          a.Config,
		})
	}
	for _, t := range def.Transitions {
		v.Transitions = append(v.Transitions, newTransitionView(t))
	}
	return v
}

func newTransitionView(t *objects.WorkflowTransition) transitionView {
	return transitionView{
		ID:     t.ID,
		Title:  t.Title,
		From:   t.SourceActionID,
		To:     t.TargetActionID,
		Guard:  t.Guard,
		Users:  t.Users,
		Groups: t.Groups,
	}
}

type instanceView struct {
	ID              string     `json:"id"`
	DefinitionID    string     `json:"definition_id"`
	Title           string     `json:"title"`
	TargetType      string     `json:"target_type"`
	TargetID        string     `json:"target_id"`
	CurrentActionID string     `json:"current_action_id,omitempty"`
	Status          string     `json:"status"`
	InitiatorID     string     `json:"initiator_id,omitempty"`
	RemindDays      int        `json:"remind_days"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	LastActivity    time.Time  `json:"last_activity"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

func newInstanceView(inst *objects.WorkflowInstance) *instanceView {
	return &instanceView{
		ID:              inst.ID,
		DefinitionID:    inst.DefinitionID,
		Title:           inst.Title,
		TargetType:      inst.TargetType,
		TargetID:        inst.TargetID,
		CurrentActionID: inst.CurrentActionID,
		Status:          inst.Status,
		InitiatorID:     inst.InitiatorID,
		RemindDays:      inst.RemindDays,
		Version:         inst.Version,
		CreatedAt:       inst.CreatedAt,
		LastActivity:    inst.LastActivity,
		FinishedAt:      inst.FinishedAt,
	}
}

type historyView struct {
	Seq            int       `json:"seq"`
	Event          string    `json:"event"`
	ActionID       string    `json:"action_id,omitempty"`
	TransitionID   string    `json:"transition_id,omitempty"`
	TargetActionID string    `json:"target_action_id,omitempty"`
	PrincipalID    string    `json:"principal_id,omitempty"`
	Comment        string    `json:"comment,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newHistoryView(history []*objects.WorkflowActionInstance) []historyView {
	out := make([]historyView, 0, len(history))
	for _, rec := range history {
		out = append(out, historyView{
			Seq:            rec.Seq,
			Event:          rec.Event,
			ActionID:       rec.ActionID,
			TransitionID:   rec.TransitionID,
			TargetActionID: rec.TargetActionID,
			PrincipalID:    rec.PrincipalID,
			Comment:        rec.Comment,
			Outcome:        rec.Outcome,
			CreatedAt:      rec.CreatedAt,
		})
	}
	return out
}

type targetWorkflowView struct {
	Instance    *instanceView    `json:"instance"`
	Definition  *definitionView  `json:"definition"`
	CanEdit     bool             `json:"can_edit"`
	CanPublish  bool             `json:"can_publish"`
	Transitions []transitionView `json:"transitions"`
}
