package objects

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const pageApprovalYAML = `
title: Page approval
initial: draft
remind_days: 3
groups: [editors]
actions:
  - name: draft
    title: Draft
    type: approval
    allow_publishing: true
  - name: notify
    type: notify
    config:
      subject: Review $Context.Title
      from: cms@example.com
      extra:
        nested: [1, {a: b}]
  - name: done
    type: publish
transitions:
  - title: Submit
    from: draft
    to: notify
  - title: Publish
    from: notify
    to: done
    guard: approved
    users: [u1]
`

func TestParseDefinitionYAML(t *testing.T) {
	asserter := assert.New(t)

	def, err := ParseDefinitionYAML([]byte(pageApprovalYAML))
	if asserter.NoError(err) {
		asserter.Equal("Page approval", def.Title)
		asserter.Equal(3, def.RemindDays)
		asserter.True(def.Groups.Has("editors"))
		if asserter.Len(def.Actions, 3) {
			asserter.Equal(def.Actions[0].ID, def.InitialAction().ID)
			asserter.True(def.Actions[0].AllowPublishing)
			asserter.Equal("notify", def.Actions[1].Title)
			asserter.Equal("Review $Context.Title", def.Actions[1].Config.String("subject"))
			extra, ok := def.Actions[1].Config["extra"].(map[string]interface{})
			if asserter.True(ok) {
				nested := extra["nested"].([]interface{})
				asserter.Equal(map[string]interface{}{"a": "b"}, nested[1])
			}
		}
		if asserter.Len(def.Transitions, 2) {
			asserter.Equal(def.Actions[2].ID, def.Transitions[1].TargetActionID)
			asserter.Equal("approved", def.Transitions[1].Guard)
			asserter.True(def.Transitions[1].Users.Has("u1"))
		}
	}
}

func TestParseDefinitionYAML_Invalid(t *testing.T) {
	asserter := assert.New(t)

	cases := map[string]string{
		"no actions":         "title: x\n",
		"unknown target":     "title: x\nactions:\n  - {name: a, type: approval}\ntransitions:\n  - {title: t, from: a, to: b}\n",
		"unknown initial":    "title: x\ninitial: b\nactions:\n  - {name: a, type: approval}\n",
		"duplicate name":     "title: x\nactions:\n  - {name: a, type: approval}\n  - {name: a, type: noop}\n",
		"missing title":      "actions:\n  - {name: a, type: approval}\n",
		"malformed document": "title: [x\n",
	}
	for name, doc := range cases {
		_, err := ParseDefinitionYAML([]byte(doc))
		asserter.True(errors.Is(err, ErrDefinitionIntegrity), name)
	}
}
