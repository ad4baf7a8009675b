package objects

import (
	"fmt"
	"sort"
	"time"

	"advflow/app/db/models"
	"advflow/pkg/contextx"
	"advflow/pkg/gormx"

	"gorm.io/gorm"
)

// Target is a content record that can be put under workflow.
type Target struct {
	*models.Content
}

func NewTarget(ref TargetRef, title string) *Target {
	return &Target{
		Content: &models.Content{
			Type:   ref.Type,
			ID:     ref.ID,
			Title:  title,
			Fields: gormx.MapJson{},
		},
	}
}

func (t *Target) Ref() TargetRef {
	return TargetRef{Type: t.Type, ID: t.ID}
}

// ParentRef returns the parent reference, zero for a root record.
func (t *Target) ParentRef() TargetRef {
	return TargetRef{Type: t.ParentType, ID: t.ParentID}
}

func (t *Target) FieldValue(name string) string {
	switch name {
	case "Title":
		return t.Title
	case "CMSLink":
		return t.Link
	}
	return t.Fields.String(name)
}

// ContextFields are the values exposed to templates as $Context.<Field>.
func (t *Target) ContextFields() map[string]string {
	out := make(map[string]string, len(t.Fields)+3)
	for k := range t.Fields {
		out[k] = t.Fields.String(k)
	}
	out["Title"] = t.Title
	out["CMSLink"] = t.Link
	out["ID"] = t.ID
	return out
}

// FieldChange is one field that differs between the draft and the
// published version of a target.
type FieldChange struct {
	Name      string `json:"name"`
	Draft     string `json:"draft"`
	Published string `json:"published"`
}

// ContentRepository stores targets and their published snapshots.
type ContentRepository struct {
	conn *gorm.DB
}

func NewContentRepository(conn *gorm.DB) *ContentRepository {
	return &ContentRepository{conn: conn}
}

// Load returns the target, nil when it does not exist.
func (r *ContentRepository) Load(ctx *contextx.Context, ref TargetRef) (*Target, error) {
	row := &models.Content{}
	err := GetDB(ctx, r.conn).Where("type = ? AND id = ?", ref.Type, ref.ID).First(row).Error
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Target{Content: row}, nil
}

func (r *ContentRepository) Save(ctx *contextx.Context, t *Target) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return GetDB(ctx, r.conn).Save(t.Content).Error
}

// Parent returns the parent record, nil for a root or a dangling parent.
func (r *ContentRepository) Parent(ctx *contextx.Context, t *Target) (*Target, error) {
	ref := t.ParentRef()
	if ref.IsZero() {
		return nil, nil
	}
	return r.Load(ctx, ref)
}

// Publish copies the draft fields into the published snapshot.
func (r *ContentRepository) Publish(ctx *contextx.Context, ref TargetRef) error {
	t, err := r.Load(ctx, ref)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: target %s", ErrNotFound, ref)
	}
	now := time.Now().UTC()
	published := t.Fields.Clone()
	if published == nil {
		published = gormx.MapJson{}
	}
	published["Title"] = t.Title
	return GetDB(ctx, r.conn).Model(&models.Content{}).
		Where("type = ? AND id = ?", ref.Type, ref.ID).
		Updates(map[string]interface{}{
			"published":    published,
			"published_at": now,
			"updated_at":   now,
		}).Error
}

// DiffAgainstDraft lists the fields whose draft value differs from the
// published one, ordered by name.
func (r *ContentRepository) DiffAgainstDraft(ctx *contextx.Context, ref TargetRef) ([]FieldChange, error) {
	t, err := r.Load(ctx, ref)
	if err != nil || t == nil {
		return nil, err
	}

	draft := t.Fields.Clone()
	if draft == nil {
		draft = gormx.MapJson{}
	}
	draft["Title"] = t.Title
	published := t.Published
	if published == nil {
		published = gormx.MapJson{}
	}

	names := map[string]bool{}
	for k := range draft {
		names[k] = true
	}
	for k := range published {
		names[k] = true
	}

	var changes []FieldChange
	for name := range names {
		d, p := draft.String(name), published.String(name)
		if d != p {
			changes = append(changes, FieldChange{Name: name, Draft: d, Published: p})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Name < changes[j].Name
	})
	return changes, nil
}
