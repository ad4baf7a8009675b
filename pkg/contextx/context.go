package contextx

import "context"

const (
	AdminRoleName = "admin"

	keyRequestID = "requestId"
	keyPrincipal = "principal"
	keyWorkflow  = "workflow"
	keyRoles     = "roles"
	keyProjectID = "project_id"
)

type Role map[string]interface{}
type Roles []Role

func (r Role) Name() string {
	if name, ok := r["name"]; ok {
		if s, ok := name.(string); ok {
			return s
		}
	}
	return ""
}

// Context is the per-call context handed through the engine and the stores.
// It carries the database transaction, when one is open, next to request
// scoped values used for logging and auditing.
type Context struct {
	context.Context
	dbTx      interface{}
	data      map[string]interface{}
	adminRole bool
}

// Clone copies the request values but not the transaction handle.
func (ctx *Context) Clone() *Context {
	parent := ctx.Context
	if parent == nil {
		parent = context.Background()
	}
	newCtx := &Context{
		Context:   parent,
		data:      map[string]interface{}{},
		adminRole: ctx.adminRole,
	}
	for k, v := range ctx.data {
		newCtx.data[k] = v
	}

	return newCtx
}

func (ctx *Context) Set(name string, value interface{}) {
	ctx.data[name] = value
}

func (ctx *Context) GetDB() interface{} {
	return ctx.dbTx
}

func (ctx *Context) SetDB(tx interface{}) {
	ctx.dbTx = tx
}

func (ctx *Context) GetMap() map[string]interface{} {
	return ctx.data
}

func (ctx *Context) getString(key string) string {
	if v, ok := ctx.data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (ctx *Context) GetProjectID() string {
	return ctx.getString(keyProjectID)
}

func (ctx *Context) GetRequestID() string {
	return ctx.getString(keyRequestID)
}

func (ctx *Context) SetRequestID(id string) {
	ctx.Set(keyRequestID, id)
}

// GetPrincipalID returns the id of the principal the call is made for.
func (ctx *Context) GetPrincipalID() string {
	return ctx.getString(keyPrincipal)
}

func (ctx *Context) SetPrincipalID(id string) {
	ctx.Set(keyPrincipal, id)
}

func (ctx *Context) GetWorkflow() string {
	return ctx.getString(keyWorkflow)
}

// SetWorkflow tags log lines with the workflow instance being worked on.
func (ctx *Context) SetWorkflow(instanceID string) {
	ctx.Set(keyWorkflow, instanceID)
}

func (ctx *Context) IsAdmin() bool {
	if ctx.adminRole {
		return true
	}
	if roles, ok := ctx.data[keyRoles]; ok {
		if rs, ok := roles.(Roles); ok {
			for _, role := range rs {
				if role.Name() == AdminRoleName {
					return true
				}
			}
		}
	}
	return false
}

func NewContext() *Context {
	return &Context{
		Context: context.Background(),
		data:    map[string]interface{}{},
	}
}

// WithContext wraps an existing context, typically an HTTP request's.
func WithContext(parent context.Context) *Context {
	return &Context{
		Context: parent,
		data:    map[string]interface{}{},
	}
}

func NewAdminContext() *Context {
	return &Context{
		Context:   context.Background(),
		data:      map[string]interface{}{},
		adminRole: true,
	}
}

func NewContextFromMap(data map[string]interface{}) *Context {
	return &Context{
		Context: context.Background(),
		data:    data,
	}
}
