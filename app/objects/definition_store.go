package objects

import (
	"time"

	"advflow/app/db/models"
	"advflow/pkg/contextx"

	"gorm.io/gorm"
)

// DefinitionStore persists definitions together with their actions and
// transitions.
type DefinitionStore struct {
	conn *gorm.DB
}

func NewDefinitionStore(conn *gorm.DB) *DefinitionStore {
	return &DefinitionStore{conn: conn}
}

// Save writes the whole graph. Actions and transitions no longer present in
// def are removed; ids are kept so running instances stay attached.
func (s *DefinitionStore) Save(ctx *contextx.Context, def *WorkflowDefinition) error {
	def.ensureID()
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	return Transaction(ctx, s.conn, func(subCtx *contextx.Context) error {
		db := GetDB(subCtx, s.conn)
		var count int64
		if err := db.Model(&models.WorkflowDefinition{}).Where("id = ?", def.ID).Count(&count).Error; err != nil {
			return err
		}
		write := db.Create
		if count > 0 {
			write = db.Save
		}
		if err := write(def.WorkflowDefinition).Error; err != nil {
			return err
		}
		if err := db.Where("definition_id = ?", def.ID).Delete(&models.WorkflowTransition{}).Error; err != nil {
			return err
		}
		if err := db.Where("definition_id = ?", def.ID).Delete(&models.WorkflowAction{}).Error; err != nil {
			return err
		}
		for _, a := range def.Actions {
			a.DefinitionID = def.ID
			if a.CreatedAt.IsZero() {
				a.CreatedAt = now
			}
			a.UpdatedAt = now
			if err := db.Create(a.WorkflowAction).Error; err != nil {
				return err
			}
		}
		for _, t := range def.Transitions {
			t.DefinitionID = def.ID
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			t.UpdatedAt = now
			if err := db.Create(t.WorkflowTransition).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Get loads a definition graph, nil when it does not exist.
func (s *DefinitionStore) Get(ctx *contextx.Context, id string) (*WorkflowDefinition, error) {
	db := GetDB(ctx, s.conn)

	row := &models.WorkflowDefinition{}
	err := db.Where("id = ?", id).First(row).Error
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.load(db, row)
}

func (s *DefinitionStore) load(db *gorm.DB, row *models.WorkflowDefinition) (*WorkflowDefinition, error) {
	def := &WorkflowDefinition{WorkflowDefinition: row}

	var actions []*models.WorkflowAction
	if err := db.Where("definition_id = ?", row.ID).Order("sort, id").Find(&actions).Error; err != nil {
		return nil, err
	}
	for _, a := range actions {
		def.Actions = append(def.Actions, &WorkflowAction{WorkflowAction: a})
	}

	var transitions []*models.WorkflowTransition
	if err := db.Where("definition_id = ?", row.ID).Order("sort, id").Find(&transitions).Error; err != nil {
		return nil, err
	}
	for _, t := range transitions {
		def.Transitions = append(def.Transitions, &WorkflowTransition{WorkflowTransition: t})
	}
	return def, nil
}

func (s *DefinitionStore) List(ctx *contextx.Context) ([]*WorkflowDefinition, error) {
	db := GetDB(ctx, s.conn)

	var rows []*models.WorkflowDefinition
	if err := db.Order("title, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	defs := make([]*WorkflowDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := s.load(db, row)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Delete removes the definition and, by composition, its actions and
// transitions.
func (s *DefinitionStore) Delete(ctx *contextx.Context, id string) error {
	return Transaction(ctx, s.conn, func(subCtx *contextx.Context) error {
		db := GetDB(subCtx, s.conn)
		if err := db.Where("definition_id = ?", id).Delete(&models.WorkflowTransition{}).Error; err != nil {
			return err
		}
		if err := db.Where("definition_id = ?", id).Delete(&models.WorkflowAction{}).Error; err != nil {
			return err
		}
		return db.Where("id = ?", id).Delete(&models.WorkflowDefinition{}).Error
	})
}
