// Package sqlutil provides identifier quoting and validation for generated SQL.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier wraps a MySQL identifier in backticks, doubling any embedded backtick.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Qualify returns the quoted table.column reference.
func Qualify(table, column string) string {
	return QuoteIdentifier(table) + "." + QuoteIdentifier(column)
}

// QualifyAll returns the quoted table.* reference.
func QualifyAll(table string) string {
	return QuoteIdentifier(table) + ".*"
}

// Restricted to alphanumerics and underscore; MySQL allows more.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier reports whether name is safe to splice into SQL.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteIdentifierSafe quotes name after validating it.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// ValidateIdentifiers returns an error for the first invalid name.
func ValidateIdentifiers(names ...string) error {
	for _, name := range names {
		if !IsValidIdentifier(name) {
			return &InvalidIdentifierError{Name: name}
		}
	}
	return nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
