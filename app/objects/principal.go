package objects

import (
	"strings"
	"time"

	"advflow/app/db/models"
	"advflow/pkg/contextx"
	"advflow/pkg/gormx"

	"gorm.io/gorm"
)

// Principal is a user that can act on workflows.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	Admin       bool
	Fields      map[string]string
}

func principalFromMember(m *models.Member) *Principal {
	p := &Principal{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: strings.TrimSpace(m.FirstName + " " + m.Surname),
		Admin:       m.Admin,
		Fields:      map[string]string{},
	}
	if p.DisplayName == "" {
		p.DisplayName = m.Email
	}
	for k := range m.Fields {
		p.Fields[k] = m.Fields.String(k)
	}
	if m.FirstName != "" {
		p.Fields["FirstName"] = m.FirstName
	}
	if m.Surname != "" {
		p.Fields["Surname"] = m.Surname
	}
	return p
}

// SummaryFields are the values exposed to templates as $Member.<Field>.
// Name falls back to the display name and Email is always present.
func (p *Principal) SummaryFields() map[string]string {
	out := make(map[string]string, len(p.Fields)+2)
	for k, v := range p.Fields {
		out[k] = v
	}
	if out["Name"] == "" {
		out["Name"] = p.DisplayName
	}
	out["Email"] = p.Email
	return out
}

// MemberDirectory resolves principals and group membership from the
// members tables.
type MemberDirectory struct {
	conn *gorm.DB
}

func NewMemberDirectory(conn *gorm.DB) *MemberDirectory {
	return &MemberDirectory{conn: conn}
}

func (d *MemberDirectory) SaveMember(ctx *contextx.Context, m *models.Member) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Fields == nil {
		m.Fields = gormx.MapJson{}
	}
	return GetDB(ctx, d.conn).Save(m).Error
}

func (d *MemberDirectory) SaveGroup(ctx *contextx.Context, g *models.Group) error {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	return GetDB(ctx, d.conn).Save(g).Error
}

func (d *MemberDirectory) AddMember(ctx *contextx.Context, groupID, memberID string) error {
	err := GetDB(ctx, d.conn).Create(&models.GroupMember{GroupID: groupID, MemberID: memberID}).Error
	if IsDuplicateError(err) {
		return nil
	}
	return err
}

// Principal returns the member with id, nil when unknown.
func (d *MemberDirectory) Principal(ctx *contextx.Context, id string) (*Principal, error) {
	if id == "" {
		return nil, nil
	}
	m := &models.Member{}
	err := GetDB(ctx, d.conn).Where("id = ?", id).First(m).Error
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return principalFromMember(m), nil
}

// CurrentPrincipal resolves the principal id carried by ctx.
func (d *MemberDirectory) CurrentPrincipal(ctx *contextx.Context) (*Principal, error) {
	if ctx == nil {
		return nil, nil
	}
	return d.Principal(ctx, ctx.GetPrincipalID())
}

// GroupsOf lists the group ids principalID belongs to.
func (d *MemberDirectory) GroupsOf(ctx *contextx.Context, principalID string) ([]string, error) {
	var ids []string
	err := GetDB(ctx, d.conn).Model(&models.GroupMember{}).
		Where("member_id = ?", principalID).
		Order("group_id").
		Pluck("group_id", &ids).Error
	return ids, err
}

// MembersOf returns the members of the given groups, each once, ordered by id.
func (d *MemberDirectory) MembersOf(ctx *contextx.Context, groupIDs ...string) ([]*Principal, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var members []*models.Member
	err := GetDB(ctx, d.conn).
		Where("id IN (?)", GetDB(ctx, d.conn).Model(&models.GroupMember{}).Select("member_id").Where("group_id IN ?", groupIDs)).
		Order("id").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	out := make([]*Principal, 0, len(members))
	for _, m := range members {
		out = append(out, principalFromMember(m))
	}
	return out, nil
}
