package models

// Models lists every table created by db.Migrate.
var Models = []interface{}{
	&WorkflowDefinition{},
	&WorkflowAction{},
	&WorkflowTransition{},
	&WorkflowInstance{},
	&WorkflowActionInstance{},
	&NamedLock{},
	&Member{},
	&Group{},
	&GroupMember{},
	&Content{},
}
