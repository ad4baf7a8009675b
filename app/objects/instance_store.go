package objects

import (
	"fmt"
	"time"

	"advflow/app/db/models"
	"advflow/pkg/contextx"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InstanceStore persists instances and their history. Instance writes after
// creation go through CompareAndSwap on the Version column.
type InstanceStore struct {
	conn *gorm.DB
}

func NewInstanceStore(conn *gorm.DB) *InstanceStore {
	return &InstanceStore{conn: conn}
}

func (s *InstanceStore) Transaction(ctx *contextx.Context, fc func(subCtx *contextx.Context) error) error {
	return Transaction(ctx, s.conn, fc)
}

func (s *InstanceStore) Create(ctx *contextx.Context, inst *WorkflowInstance) error {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}
	if inst.LastActivity.IsZero() {
		inst.LastActivity = inst.CreatedAt
	}
	inst.Version = 1
	return GetDB(ctx, s.conn).Create(inst.WorkflowInstance).Error
}

// Get returns the instance with id, nil when it does not exist.
func (s *InstanceStore) Get(ctx *contextx.Context, id string) (*WorkflowInstance, error) {
	row := &models.WorkflowInstance{}
	err := GetDB(ctx, s.conn).Where("id = ?", id).First(row).Error
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &WorkflowInstance{WorkflowInstance: row}, nil
}

// CompareAndSwap writes inst if the stored version still equals inst.Version
// and bumps the version. A mismatch returns ErrConcurrentModification.
func (s *InstanceStore) CompareAndSwap(ctx *contextx.Context, inst *WorkflowInstance) error {
	expected := inst.Version
	result := GetDB(ctx, s.conn).Model(&models.WorkflowInstance{}).
		Where("id = ? AND version = ?", inst.ID, expected).
		Updates(map[string]interface{}{
			"title":             inst.Title,
			"current_action_id": inst.CurrentActionID,
			"status":            inst.Status,
			"remind_days":       inst.RemindDays,
			"last_activity":     inst.LastActivity,
			"finished_at":       inst.FinishedAt,
			"version":           expected + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: instance %s is no longer at version %d", ErrConcurrentModification, inst.ID, expected)
	}
	inst.Version = expected + 1
	return nil
}

func (s *InstanceStore) FindByTarget(ctx *contextx.Context, ref TargetRef, statuses ...Status) ([]*WorkflowInstance, error) {
	q := GetDB(ctx, s.conn).Where("target_type = ? AND target_id = ?", ref.Type, ref.ID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(statuses))
	}

	var rows []*models.WorkflowInstance
	if err := q.Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return wrapInstances(rows), nil
}

// FindReminderCandidates returns the non-terminal instances with a reminder
// interval. Whether one is stale is decided by the caller's clock.
func (s *InstanceStore) FindReminderCandidates(ctx *contextx.Context) ([]*WorkflowInstance, error) {
	var rows []*models.WorkflowInstance
	err := GetDB(ctx, s.conn).
		Where("status IN ? AND remind_days > 0", statusStrings(NonTerminalStatuses)).
		Order("last_activity, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return wrapInstances(rows), nil
}

// AppendHistory inserts rec with the next sequence number of its instance.
func (s *InstanceStore) AppendHistory(ctx *contextx.Context, rec *WorkflowActionInstance) error {
	db := GetDB(ctx, s.conn)

	var last struct{ Seq int }
	err := db.Model(&models.WorkflowActionInstance{}).
		Select("COALESCE(MAX(seq), 0) AS seq").
		Where("instance_id = ?", rec.InstanceID).
		Scan(&last).Error
	if err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Seq = last.Seq + 1
	return db.Create(rec.WorkflowActionInstance).Error
}

// History returns the audit trail of an instance in execution order.
func (s *InstanceStore) History(ctx *contextx.Context, instanceID string) ([]*WorkflowActionInstance, error) {
	var rows []*models.WorkflowActionInstance
	err := GetDB(ctx, s.conn).Where("instance_id = ?", instanceID).Order("seq").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return wrapHistory(rows), nil
}

// HistoryForTarget returns the newest records across all instances of a
// target. limit <= 0 means no limit.
func (s *InstanceStore) HistoryForTarget(ctx *contextx.Context, ref TargetRef, limit int) ([]*WorkflowActionInstance, error) {
	q := GetDB(ctx, s.conn).Model(&models.WorkflowActionInstance{}).
		Joins("JOIN workflow_instances ON workflow_instances.id = workflow_action_instances.instance_id").
		Where("workflow_instances.target_type = ? AND workflow_instances.target_id = ?", ref.Type, ref.ID).
		Order("workflow_action_instances.created_at DESC, workflow_action_instances.seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []*models.WorkflowActionInstance
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return wrapHistory(rows), nil
}

func targetLockName(ref TargetRef) string {
	return "workflow-target:" + ref.String()
}

// AcquireTargetLock marks ref as held by a running instance.
func (s *InstanceStore) AcquireTargetLock(ctx *contextx.Context, ref TargetRef, instanceID string) error {
	return AcquireNamedLock(ctx, s.conn, targetLockName(ref), instanceID)
}

func (s *InstanceStore) ReleaseTargetLock(ctx *contextx.Context, ref TargetRef) error {
	return ReleaseNamedLock(ctx, s.conn, targetLockName(ref))
}

func (s *InstanceStore) WithNamedLock(ctx *contextx.Context, name string, callback func() error) error {
	return WithNamedLock(ctx, s.conn, name, callback)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, string(st))
	}
	return out
}

func wrapInstances(rows []*models.WorkflowInstance) []*WorkflowInstance {
	out := make([]*WorkflowInstance, 0, len(rows))
	for _, row := range rows {
		out = append(out, &WorkflowInstance{WorkflowInstance: row})
	}
	return out
}

func wrapHistory(rows []*models.WorkflowActionInstance) []*WorkflowActionInstance {
	out := make([]*WorkflowActionInstance, 0, len(rows))
	for _, row := range rows {
		out = append(out, &WorkflowActionInstance{WorkflowActionInstance: row})
	}
	return out
}
