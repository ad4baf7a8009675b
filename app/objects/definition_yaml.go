package objects

import (
	"fmt"

	"advflow/pkg/gormx"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// DefinitionSpec is the YAML form of a definition. Actions and transitions
// refer to each other by name; ids are generated on import.
type DefinitionSpec struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title" validate:"required"`
	Description string           `yaml:"description"`
	Initial     string           `yaml:"initial"`
	RemindDays  int              `yaml:"remind_days" validate:"gte=0"`
	Users       []string         `yaml:"users"`
	Groups      []string         `yaml:"groups"`
	Actions     []ActionSpec     `yaml:"actions" validate:"required,min=1,dive"`
	Transitions []TransitionSpec `yaml:"transitions" validate:"dive"`
}

type ActionSpec struct {
	Name            string                      `yaml:"name" validate:"required"`
	Title           string                      `yaml:"title"`
	Type            string                      `yaml:"type" validate:"required"`
	AllowPublishing bool                        `yaml:"allow_publishing"`
	Users           []string                    `yaml:"users"`
	Groups          []string                    `yaml:"groups"`
	Config          map[interface{}]interface{} `yaml:"config"`
}

type TransitionSpec struct {
	Title  string   `yaml:"title" validate:"required"`
	From   string   `yaml:"from" validate:"required"`
	To     string   `yaml:"to" validate:"required"`
	Guard  string   `yaml:"guard"`
	Users  []string `yaml:"users"`
	Groups []string `yaml:"groups"`
}

var specValidate = validator.New()

// changeMap turns the map[interface{}]interface{} values yaml.v2 produces
// into JSON friendly maps.
func changeMap(m map[interface{}]interface{}) map[string]interface{} {
	res := make(map[string]interface{}, len(m))
	for k, v := range m {
		res[fmt.Sprint(k)] = changeValue(v)
	}
	return res
}

func changeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		return changeMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = changeValue(item)
		}
		return out
	default:
		return t
	}
}

// ParseDefinitionYAML builds a definition from its YAML form and checks the
// graph integrity. Action configuration is checked by the action registry.
func ParseDefinitionYAML(data []byte) (*WorkflowDefinition, error) {
	spec := DefinitionSpec{}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, &WorkflowError{Kind: ErrDefinitionIntegrity, Op: "parse definition", Err: err}
	}
	if err := specValidate.Struct(&spec); err != nil {
		return nil, &WorkflowError{Kind: ErrDefinitionIntegrity, Op: "parse definition", DefinitionID: spec.ID, Err: err}
	}
	return spec.Build()
}

func (spec *DefinitionSpec) Build() (*WorkflowDefinition, error) {
	def := NewWorkflowDefinition()
	def.ID = spec.ID
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.Title = spec.Title
	def.Description = spec.Description
	def.RemindDays = spec.RemindDays
	def.Users = gormx.SliceString(spec.Users)
	def.Groups = gormx.SliceString(spec.Groups)

	byName := map[string]*WorkflowAction{}
	for _, as := range spec.Actions {
		if _, ok := byName[as.Name]; ok {
			return nil, def.integrityError("", "", "duplicate action name %q", as.Name)
		}
		title := as.Title
		if title == "" {
			title = as.Name
		}
		a := NewWorkflowAction(title, as.Type)
		a.AllowPublishing = as.AllowPublishing
		a.Users = gormx.SliceString(as.Users)
		a.Groups = gormx.SliceString(as.Groups)
		if as.Config != nil {
			a.Config = gormx.MapJson(changeMap(as.Config))
		}
		byName[as.Name] = def.AddAction(a)
	}

	if spec.Initial != "" {
		initial, ok := byName[spec.Initial]
		if !ok {
			return nil, def.integrityError("", "", "initial action %q is not defined", spec.Initial)
		}
		def.InitialActionID = initial.ID
	}

	for _, ts := range spec.Transitions {
		from, ok := byName[ts.From]
		if !ok {
			return nil, def.integrityError("", "", "transition %q leaves unknown action %q", ts.Title, ts.From)
		}
		to, ok := byName[ts.To]
		if !ok {
			return nil, def.integrityError("", "", "transition %q enters unknown action %q", ts.Title, ts.To)
		}
		t := NewWorkflowTransition(ts.Title, from, to)
		t.Guard = ts.Guard
		t.Users = gormx.SliceString(ts.Users)
		t.Groups = gormx.SliceString(ts.Groups)
		def.AddTransition(t)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
