package workflow

import (
	"testing"
	"time"

	"advflow/app/config"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestReminderSweep(t *testing.T) {
	asserter := assert.New(t)
	f := newFixture(t)
	def := reviewDefinition()
	def.RemindDays = 2
	f.save(def)

	target := f.target("1", "Report")
	inst, err := f.engine.Start(f.ctx, def, target, f.jo)
	if !asserter.NoError(err) {
		return
	}
	if !asserter.NoError(f.targets.Publish(f.ctx, target.Ref())) {
		return
	}
	target, err = f.targets.Load(f.ctx, target.Ref())
	if !asserter.NoError(err) || !asserter.NotNil(target) {
		return
	}
	target.Fields["Content"] = "edited text"
	if !asserter.NoError(f.targets.Save(f.ctx, target)) {
		return
	}

	sweep := f.engine.ReminderSweep(config.ReminderConfig{From: "cms@example.com"})

	f.advance(24 * time.Hour)
	sent, err := sweep.Sweep(f.ctx)
	if asserter.NoError(err) {
		asserter.Equal(0, sent)
		asserter.Empty(f.mail.Sent())
	}

	f.advance(24 * time.Hour)
	sent, err = sweep.Sweep(f.ctx)
	if asserter.NoError(err) && asserter.Equal(1, sent) && asserter.Len(f.mail.Sent(), 1) {
		msg := f.mail.Sent()[0]
		asserter.Equal("Workflow Reminder: Page approval - Report", msg.Subject)
		asserter.Equal("cms@example.com", msg.From)
		asserter.Equal([]string{"jo@example.com"}, msg.Bcc)
		asserter.Empty(msg.To)
		asserter.Contains(msg.Body, "admin/show/1")
		asserter.Contains(msg.Body, `- Content: "draft text" -> "edited text"`)
		asserter.Contains(msg.Body, "2024-03-01 09:00")
	}

	reloaded, err := f.engine.Instance(f.ctx, inst.ID)
	if asserter.NoError(err) {
		asserter.True(reloaded.LastActivity.Equal(f.clock))
		asserter.Equal(inst.Version+1, reloaded.Version)
	}

	// last activity was reset, so an immediate second sweep is quiet
	sent, err = sweep.Sweep(f.ctx)
	if asserter.NoError(err) {
		asserter.Equal(0, sent)
		asserter.Len(f.mail.Sent(), 1)
	}
}

func TestReminderSweep_PausedAndUnassigned(t *testing.T) {
	asserter := assert.New(t)
	metrics := NewMetrics()
	f := newFixture(t, WithMetrics(metrics))

	def := reviewDefinition()
	def.RemindDays = 1
	f.save(def)
	paused, err := f.engine.Start(f.ctx, def, f.target("1", "Paused"), f.jo)
	if !asserter.NoError(err) {
		return
	}
	_, err = f.engine.Pause(f.ctx, paused)
	if !asserter.NoError(err) {
		return
	}

	nobody := reviewDefinition()
	nobody.RemindDays = 1
	nobody.Groups = []string{"nobody"}
	f.save(nobody)
	_, err = f.engine.Start(f.ctx, nobody, f.target("2", "Unassigned"), f.jo)
	if !asserter.NoError(err) {
		return
	}

	quiet := reviewDefinition()
	f.save(quiet)
	_, err = f.engine.Start(f.ctx, quiet, f.target("3", "No reminders"), f.jo)
	if !asserter.NoError(err) {
		return
	}

	f.advance(48 * time.Hour)
	sent, err := f.engine.ReminderSweep(config.ReminderConfig{}).Sweep(f.ctx)
	if asserter.NoError(err) && asserter.Equal(1, sent) && asserter.Len(f.mail.Sent(), 1) {
		msg := f.mail.Sent()[0]
		asserter.Equal("Workflow Reminder: Page approval - Paused", msg.Subject)
		asserter.Equal("workflow@localhost", msg.From)
	}
	asserter.Equal(1.0, testutil.ToFloat64(metrics.reminders))
}

func TestReminderSweep_SkipsWhileAnotherRuns(t *testing.T) {
	asserter := assert.New(t)
	f := newFixture(t)
	def := reviewDefinition()
	def.RemindDays = 1
	f.save(def)
	_, err := f.engine.Start(f.ctx, def, f.target("1", "Report"), f.jo)
	if !asserter.NoError(err) {
		return
	}
	f.advance(48 * time.Hour)
	sweep := f.engine.ReminderSweep(config.ReminderConfig{})

	err = f.instances.WithNamedLock(f.ctx, reminderLockName, func() error {
		sent, err := sweep.Sweep(f.ctx)
		if asserter.NoError(err) {
			asserter.Equal(0, sent)
		}
		return nil
	})
	if asserter.NoError(err) {
		asserter.Empty(f.mail.Sent())
	}

	sent, err := sweep.Sweep(f.ctx)
	if asserter.NoError(err) {
		asserter.Equal(1, sent)
	}
}
