package workflow

import (
	"fmt"
	"strings"

	"advflow/app/expressions"
	"advflow/app/expressions/jinja"
	"advflow/app/mailer"
	"advflow/app/objects"
	"advflow/pkg/contextx"
	"advflow/pkg/gormx"
)

const commentHistoryTemplate = `{% for item in PastActions %}{{ date(item.Created, "2006-01-02 15:04") }} {{ item.Principal }}: {{ item.Action }}{% if item.Comment %} - {{ item.Comment }}{% endif %}
{% endfor %}`

type notifyConfig struct {
	Subject  string `mapstructure:"subject" validate:"required"`
	From     string `mapstructure:"from" validate:"required,email"`
	Template string `mapstructure:"template"`
	// ListingTemplate, when set, renders the body with the full history
	// as Items instead of substituting Template.
	ListingTemplate string `mapstructure:"listing_template"`
}

// NotifyAction mails everyone who may act on the workflow when it is
// entered.
type NotifyAction struct {
	config notifyConfig
}

func NewNotifyAction(config gormx.MapJson) (ActionHandler, error) {
	a := &NotifyAction{}
	if err := DecodeConfig(config, &a.config); err != nil {
		return nil, err
	}
	if a.config.ListingTemplate != "" {
		if _, err := jinja.Compile(a.config.ListingTemplate); err != nil {
			return nil, fmt.Errorf("listing_template: %w", err)
		}
	}
	return a, nil
}

func (a *NotifyAction) AutoExecute() bool {
	return true
}

func (a *NotifyAction) deliveryFailed(actx *ActionContext, err error) error {
	return &objects.WorkflowError{
		Kind:         objects.ErrDeliveryFailed,
		Op:           "notify",
		InstanceID:   actx.Instance.ID,
		DefinitionID: actx.Instance.DefinitionID,
		ActionID:     actx.Action.ID,
		Err:          err,
	}
}

func (a *NotifyAction) Apply(actx *ActionContext) (string, error) {
	recipients, err := actx.Resolver.AssignedPrincipals(actx.Ctx, actx.Instance)
	if err != nil {
		return "", a.deliveryFailed(actx, err)
	}
	var emails []string
	for _, p := range recipients {
		if p.Email != "" {
			emails = append(emails, p.Email)
		}
	}
	if len(emails) == 0 {
		return "", a.deliveryFailed(actx, fmt.Errorf("no recipients"))
	}

	msg, err := a.Render(actx)
	if err != nil {
		return "", a.deliveryFailed(actx, err)
	}
	msg.To = emails

	if actx.Services.Transport == nil {
		return "", a.deliveryFailed(actx, fmt.Errorf("no mail transport"))
	}
	if err := actx.Deliver(msg); err != nil {
		return "", a.deliveryFailed(actx, err)
	}
	return fmt.Sprintf("notified %s", strings.Join(emails, ", ")), nil
}

// Render builds the message without recipients.
func (a *NotifyAction) Render(actx *ActionContext) (*mailer.Message, error) {
	contextFields := map[string]string{}
	if actx.Target != nil {
		contextFields = actx.Target.ContextFields()
	}
	memberFields := map[string]string{}
	if actx.Actor != nil {
		memberFields = actx.Actor.SummaryFields()
	}

	items, err := historyItems(actx.Ctx, actx.Services, actx.Definition, actx.Instance.ID)
	if err != nil {
		return nil, err
	}

	vars := expressions.Merge(
		expressions.Variables("Context", contextFields),
		expressions.Variables("Member", memberFields),
	)
	if strings.Contains(a.config.Subject+a.config.Template, "$CommentHistory") {
		history, err := jinja.Render(commentHistoryTemplate, map[string]interface{}{
			"PastActions": items,
		})
		if err != nil {
			return nil, err
		}
		vars["$CommentHistory"] = history
	}

	msg := &mailer.Message{
		Subject: expressions.Substitute(a.config.Subject, vars),
		From:    a.config.From,
	}
	if a.config.ListingTemplate != "" {
		msg.Body, err = jinja.Render(a.config.ListingTemplate, map[string]interface{}{
			"Items":    items,
			"Member":   memberFields,
			"Context":  contextFields,
			"Instance": instanceFields(actx.Instance),
		})
		if err != nil {
			return nil, err
		}
	} else {
		msg.Body = expressions.Substitute(a.config.Template, vars)
	}
	return msg, nil
}

func instanceFields(inst *objects.WorkflowInstance) map[string]interface{} {
	return map[string]interface{}{
		"ID":           inst.ID,
		"Title":        inst.Title,
		"Status":       inst.Status,
		"Created":      inst.CreatedAt,
		"LastActivity": inst.LastActivity,
	}
}

// historyItems returns the audit trail of an instance, newest first, in the
// shape templates use.
func historyItems(ctx *contextx.Context, svc Services, def *objects.WorkflowDefinition, instanceID string) ([]map[string]interface{}, error) {
	history, err := svc.Instances.History(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	items := make([]map[string]interface{}, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]

		name, ok := names[rec.PrincipalID]
		if !ok && rec.PrincipalID != "" {
			p, err := svc.Principals.Principal(ctx, rec.PrincipalID)
			if err != nil {
				return nil, err
			}
			name = rec.PrincipalID
			if p != nil {
				name = p.DisplayName
			}
			names[rec.PrincipalID] = name
		}

		title := rec.Event
		if def != nil {
			if t := def.Transition(rec.TransitionID); t != nil {
				title = t.Title
			} else if a := def.Action(rec.ActionID); a != nil && rec.Event == string(objects.EventStarted) {
				title = a.Title
			}
		}

		items = append(items, map[string]interface{}{
			"Event":     rec.Event,
			"Action":    title,
			"Principal": name,
			"Comment":   rec.Comment,
			"Outcome":   rec.Outcome,
			"Created":   rec.CreatedAt,
		})
	}
	return items, nil
}
