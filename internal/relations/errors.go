package relations

import (
	"fmt"
	"strings"
)

// ErrorKind classifies relation errors.
type ErrorKind int

const (
	UnknownTable ErrorKind = iota + 1
	UnknownRelation
	MissingPivots
	MissingProperty
	NotRelatable
	InvalidWithoutArgument
	InvalidOperation
	NoSchemaAvailable
	NoSuchOperation
)

var kindNames = map[ErrorKind]string{
	UnknownTable:           "UnknownTable",
	UnknownRelation:        "UnknownRelation",
	MissingPivots:          "MissingPivots",
	MissingProperty:        "MissingProperty",
	NotRelatable:           "NotRelatable",
	InvalidWithoutArgument: "InvalidWithoutArgument",
	InvalidOperation:       "InvalidOperation",
	NoSchemaAvailable:      "NoSchemaAvailable",
	NoSuchOperation:        "NoSuchOperation",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// messages are indexed by kind; %s verbs are filled from Error.Args in order.
var messages = map[ErrorKind]string{
	UnknownTable:           "table not present in schema: %s",
	UnknownRelation:        "table %s is not known to be related to %s",
	MissingPivots:          "table %s does not indicate a pivot route to %s",
	MissingProperty:        "table %s must have the %s property to use relations",
	NotRelatable:           "table %s must be declared in the schema to use relations",
	InvalidWithoutArgument: "\"without\" must be a table name or list of table names, got %q",
	InvalidOperation:       "operation %s not valid on %s",
	NoSchemaAvailable:      "unable to load schema",
	NoSuchOperation:        "no such operation %s on %s",
}

// Error is a relation lookup or usage error.
type Error struct {
	Kind ErrorKind
	Args []string
	Err  error
}

// Sentinels for errors.Is. Matching compares the kind only.
var (
	ErrUnknownTable           = &Error{Kind: UnknownTable}
	ErrUnknownRelation        = &Error{Kind: UnknownRelation}
	ErrMissingPivots          = &Error{Kind: MissingPivots}
	ErrMissingProperty        = &Error{Kind: MissingProperty}
	ErrNotRelatable           = &Error{Kind: NotRelatable}
	ErrInvalidWithoutArgument = &Error{Kind: InvalidWithoutArgument}
	ErrInvalidOperation       = &Error{Kind: InvalidOperation}
	ErrNoSchemaAvailable      = &Error{Kind: NoSchemaAvailable}
	ErrNoSuchOperation        = &Error{Kind: NoSuchOperation}
)

func newError(kind ErrorKind, args ...string) *Error {
	return &Error{Kind: kind, Args: args}
}

func (e *Error) Error() string {
	format, ok := messages[e.Kind]
	if !ok {
		format = e.Kind.String()
	}

	want := strings.Count(format, "%")
	args := make([]any, want)
	for i := range args {
		if i < len(e.Args) {
			args[i] = e.Args[i]
		} else {
			args[i] = "?"
		}
	}

	msg := fmt.Sprintf(format, args...)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// isLookupError reports whether err is a schema lookup failure that silent
// mode may turn into an empty result.
func isLookupError(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case UnknownTable, UnknownRelation, MissingPivots:
		return true
	}
	return false
}
