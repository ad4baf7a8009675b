package workflow

import (
	"errors"
	"time"

	"advflow/app/config"
	"advflow/app/expressions/jinja"
	"advflow/app/mailer"
	"advflow/app/objects"
	"advflow/pkg/contextx"
	"advflow/pkg/log"
)

const defaultReminderTemplate = `The workflow "{{ Instance.Title }}" has had no activity since {{ date(Instance.LastActivity, "2006-01-02 15:04") }}.
{% if Link %}Review it at {{ Link }}
{% endif %}{% if Diff %}
Pending changes:
{% for change in Diff %}- {{ change.Name }}: "{{ change.Published }}" -> "{{ change.Draft }}"
{% endfor %}{% endif %}`

const (
	defaultReminderFrom = "workflow@localhost"
	reminderLockName    = "workflow-reminder-sweep"
)

// namedLocker is implemented by instance stores that can serialize sweeps
// across processes.
type namedLocker interface {
	WithNamedLock(ctx *contextx.Context, name string, callback func() error) error
}

// ReminderSweep mails the assigned principals of workflows that have been
// idle for longer than their reminder interval.
type ReminderSweep struct {
	engine   *Engine
	template string
	from     string
}

func (e *Engine) ReminderSweep(cfg config.ReminderConfig) *ReminderSweep {
	s := &ReminderSweep{
		engine:   e,
		template: cfg.Template,
		from:     cfg.From,
	}
	if s.template == "" {
		s.template = defaultReminderTemplate
	}
	if s.from == "" {
		s.from = defaultReminderFrom
	}
	return s
}

func stale(inst *objects.WorkflowInstance, now time.Time) bool {
	if inst.RemindDays <= 0 {
		return false
	}
	due := inst.LastActivity.Add(time.Duration(inst.RemindDays) * 24 * time.Hour)
	return !due.After(now)
}

// Sweep sends one reminder per stale Active or Paused instance and resets
// its last activity. It returns the number of reminders sent. A sweep that
// finds another one running sends nothing.
func (s *ReminderSweep) Sweep(ctx *contextx.Context) (int, error) {
	locker, ok := s.engine.svc.Instances.(namedLocker)
	if !ok {
		return s.sweep(ctx)
	}

	sent := 0
	err := locker.WithNamedLock(ctx, reminderLockName, func() (err error) {
		sent, err = s.sweep(ctx)
		return err
	})
	if errors.Is(err, objects.ErrLockHeld) {
		log.GetLogger(ctx, "reminder").Info("another reminder sweep is running")
		return 0, nil
	}
	return sent, err
}

func (s *ReminderSweep) sweep(ctx *contextx.Context) (int, error) {
	e := s.engine
	logger := log.GetLogger(ctx, "reminder")

	candidates, err := e.svc.Instances.FindReminderCandidates(ctx)
	if err != nil {
		return 0, err
	}

	now := e.now()
	sent := 0
	for _, inst := range candidates {
		if !stale(inst, now) {
			continue
		}
		ok, err := s.remind(ctx, inst, now)
		if ok {
			sent++
			e.metrics.reminderSent()
		}
		if err != nil {
			logger.WithField("workflow", inst.ID).Warnf("reminder failed, error: %s", err.Error())
		}
	}
	logger.Infof("sent %d workflow reminder emails", sent)
	return sent, nil
}

func (s *ReminderSweep) remind(ctx *contextx.Context, inst *objects.WorkflowInstance, now time.Time) (bool, error) {
	e := s.engine

	members, err := e.resolver.AssignedPrincipals(ctx, inst)
	if err != nil {
		return false, err
	}
	var bcc []string
	for _, p := range members {
		if p.Email != "" {
			bcc = append(bcc, p.Email)
		}
	}
	if len(bcc) == 0 {
		return false, nil
	}

	ref := inst.Target()
	target, err := e.svc.Targets.Load(ctx, ref)
	if err != nil {
		return false, err
	}
	link := ""
	if target != nil && target.Type == "page" {
		link = "admin/show/" + target.ID
	}
	diff, err := e.svc.Targets.DiffAgainstDraft(ctx, ref)
	if err != nil {
		return false, err
	}

	body, err := jinja.Render(s.template, map[string]interface{}{
		"Instance": instanceFields(inst),
		"Link":     link,
		"Diff":     diff,
	})
	if err != nil {
		return false, err
	}

	if e.svc.Transport == nil {
		return false, errors.New("no mail transport")
	}
	err = e.svc.Transport.Send(ctx, &mailer.Message{
		Subject: "Workflow Reminder: " + inst.Title,
		Body:    body,
		From:    s.from,
		Bcc:     bcc,
	})
	if err != nil {
		return false, err
	}

	work := inst.Clone()
	work.LastActivity = now
	if err := e.svc.Instances.CompareAndSwap(ctx, work); err != nil {
		return true, commitError("remind", inst, err)
	}
	return true, nil
}
