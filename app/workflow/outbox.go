package workflow

import (
	"fmt"

	"advflow/app/mailer"
	"advflow/app/objects"
	"advflow/pkg/contextx"
	"advflow/pkg/log"
)

// outbox holds the mail rendered inside a store transaction. Nothing is
// handed to the transport until the transaction has committed.
type outbox struct {
	items []*delivery
}

type delivery struct {
	instanceID string
	action     *objects.WorkflowAction
	msg        *mailer.Message
}

// Deliver sends msg once the surrounding transaction commits. Outside an
// engine transaction msg is sent right away.
func (actx *ActionContext) Deliver(msg *mailer.Message) error {
	if actx.outbox == nil {
		return actx.Services.Transport.Send(actx.Ctx, msg)
	}
	d := &delivery{msg: msg, action: actx.Action}
	if actx.Instance != nil {
		d.instanceID = actx.Instance.ID
	}
	actx.outbox.items = append(actx.outbox.items, d)
	return nil
}

// flush sends the queued mail with ctx, which must not carry the committed
// transaction. A failed send is logged and recorded as a delivery_failed
// history record; the transition it belongs to stays.
func (e *Engine) flush(ctx *contextx.Context, box *outbox) {
	if box == nil {
		return
	}
	for _, d := range box.items {
		err := e.svc.Transport.Send(ctx, d.msg)
		if err == nil {
			continue
		}
		logger := log.GetLogger(ctx, "engine").WithField("workflow", d.instanceID)
		logger.Warnf("mail for action %s failed, error: %s", d.action.Title, err.Error())
		e.metrics.sideEffect(d.action.Type, err)

		we := &objects.WorkflowError{
			Kind:       objects.ErrDeliveryFailed,
			Op:         "notify",
			InstanceID: d.instanceID,
			ActionID:   d.action.ID,
			Err:        err,
		}
		rec := objects.NewWorkflowActionInstance(d.instanceID, objects.EventDeliveryFailed)
		rec.ActionID = d.action.ID
		rec.Outcome = fmt.Sprintf("%s: %s", errorKind(we), we.Error())
		rec.CreatedAt = e.now()
		if err := e.svc.Instances.AppendHistory(ctx, rec); err != nil {
			logger.Errorf("record delivery failure failed, error: %s", err.Error())
		}
	}
}
