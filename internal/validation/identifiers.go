// Package validation checks the format of user-supplied identifiers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fileNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/._-]{0,63}$`)
	deskNameRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._-]{0,63}$`)
)

// ValidateFileNumber validates a file reference such as "REV/2026/00042".
func ValidateFileNumber(number string) error {
	if !fileNumberRegex.MatchString(number) {
		return fmt.Errorf("file number must be 1-64 characters of letters, digits, '/', '.', '_' or '-' and start with a letter or digit")
	}
	if strings.Contains(number, "//") {
		return fmt.Errorf("file number cannot contain empty segments")
	}
	if strings.HasSuffix(number, "/") {
		return fmt.Errorf("file number cannot end with '/'")
	}
	return nil
}

// ValidateDeskName validates a desk display name.
func ValidateDeskName(name string) error {
	if !deskNameRegex.MatchString(name) {
		return fmt.Errorf("desk name must be 1-64 characters of letters, digits, spaces, '.', '_' or '-' and start with a letter or digit")
	}
	if strings.Contains(name, "  ") {
		return fmt.Errorf("desk name cannot contain consecutive spaces")
	}
	return nil
}
