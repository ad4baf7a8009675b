package objects

import (
	"testing"

	"advflow/pkg/contextx"

	"github.com/stretchr/testify/assert"
)

func TestContentRepository_PublishAndDiff(t *testing.T) {
	asserter := assert.New(t)
	repo := NewContentRepository(openTestDB(t))
	ctx := contextx.NewContext()

	ref := TargetRef{Type: "page", ID: "home"}
	target := NewTarget(ref, "Home")
	target.Fields["Body"] = "hello"
	target.Link = "admin/pages/edit/home"
	if !asserter.NoError(repo.Save(ctx, target)) {
		return
	}

	changes, err := repo.DiffAgainstDraft(ctx, ref)
	if asserter.NoError(err) {
		asserter.Equal([]FieldChange{
			{Name: "Body", Draft: "hello"},
			{Name: "Title", Draft: "Home"},
		}, changes)
	}

	if asserter.NoError(repo.Publish(ctx, ref)) {
		changes, err = repo.DiffAgainstDraft(ctx, ref)
		asserter.NoError(err)
		asserter.Empty(changes)

		loaded, err := repo.Load(ctx, ref)
		if asserter.NoError(err) {
			asserter.NotNil(loaded.PublishedAt)
			asserter.Equal("admin/pages/edit/home", loaded.ContextFields()["CMSLink"])
		}
	}
}

func TestContentRepository_Parent(t *testing.T) {
	asserter := assert.New(t)
	repo := NewContentRepository(openTestDB(t))
	ctx := contextx.NewContext()

	root := NewTarget(TargetRef{Type: "page", ID: "root"}, "Root")
	child := NewTarget(TargetRef{Type: "page", ID: "child"}, "Child")
	child.ParentType, child.ParentID = "page", "root"
	asserter.NoError(repo.Save(ctx, root))
	asserter.NoError(repo.Save(ctx, child))

	parent, err := repo.Parent(ctx, child)
	if asserter.NoError(err) && asserter.NotNil(parent) {
		asserter.Equal("Root", parent.Title)
	}

	none, err := repo.Parent(ctx, root)
	asserter.NoError(err)
	asserter.Nil(none)
}
