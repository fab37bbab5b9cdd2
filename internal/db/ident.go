package db

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxIdentLength bounds identifiers accepted for interpolation. PostgreSQL
// truncates at 63 bytes and MySQL at 64; SQLite has no limit, so the larger
// value is used.
const maxIdentLength = 128

var ErrInvalidIdentifier = errors.New("invalid identifier")

// ValidateIdent checks that name can safely be quoted into a statement.
// It is only needed where the catalog function does not accept bound
// parameters.
func ValidateIdent(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	case len(name) > maxIdentLength:
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidIdentifier, name[:16]+"...", maxIdentLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidIdentifier, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidIdentifier, name)
	}
	return nil
}

// QuoteIdent validates name and returns it as a double-quoted SQL
// identifier with embedded quotes doubled.
func QuoteIdent(name string) (string, error) {
	if err := ValidateIdent(name); err != nil {
		return "", err
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}
