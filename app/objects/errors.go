package objects

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Error kinds. Every rejected engine operation returns a *WorkflowError whose
// Kind is one of these, so callers test with errors.Is.
var (
	ErrDuplicateActiveWorkflow = errors.New("duplicate active workflow")
	ErrInstanceNotActive       = errors.New("instance not active")
	ErrUnknownTransition       = errors.New("unknown transition")
	ErrAmbiguousTransition     = errors.New("ambiguous transition")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrDeliveryFailed          = errors.New("delivery failed")
	ErrDefinitionIntegrity     = errors.New("definition integrity error")
	ErrNotFound                = errors.New("not found")

	// ErrLockHeld is returned by AcquireNamedLock when the name is taken.
	ErrLockHeld = errors.New("lock held")
)

var kindNames = map[error]string{
	ErrDuplicateActiveWorkflow: "DuplicateActiveWorkflow",
	ErrInstanceNotActive:       "InstanceNotActive",
	ErrUnknownTransition:       "UnknownTransition",
	ErrAmbiguousTransition:     "AmbiguousTransition",
	ErrUnauthorized:            "Unauthorized",
	ErrInvalidStateTransition:  "InvalidStateTransition",
	ErrConcurrentModification:  "ConcurrentModification",
	ErrDeliveryFailed:          "DeliveryFailed",
	ErrDefinitionIntegrity:     "DefinitionIntegrityError",
	ErrNotFound:                "NotFound",
}

// WorkflowError carries the error kind together with the identifiers that
// triggered it.
type WorkflowError struct {
	Kind         error
	Op           string
	InstanceID   string
	DefinitionID string
	ActionID     string
	TransitionID string
	Principal    string
	Target       string
	Err          error
}

func (e *WorkflowError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("workflow error")
	}

	var ids []string
	add := func(name, value string) {
		if value != "" {
			ids = append(ids, name+"="+value)
		}
	}
	add("instance", e.InstanceID)
	add("definition", e.DefinitionID)
	add("action", e.ActionID)
	add("transition", e.TransitionID)
	add("principal", e.Principal)
	add("target", e.Target)
	if len(ids) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(ids, ", "))
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// KindName returns the taxonomy name of err, e.g. "Unauthorized", or "" when
// err is not one of the workflow kinds.
func KindName(err error) string {
	var we *WorkflowError
	if errors.As(err, &we) {
		if name, ok := kindNames[we.Kind]; ok {
			return name
		}
	}
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return ""
}

func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrRecordNotFound) || err.Error() == "record not found"
}

// IsDuplicateError reports a unique constraint violation from sqlite or mysql.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
