package registry

import (
	"fmt"
	"strings"
)

// MaxNameLength is the package-name length cap (spec §3, §9 "magic
// numbers preserved from the reference design; expose them as
// configuration").
const MaxNameLength = 60

// ValidationError is returned by checkPackageName and validateRecipe. It
// carries a human-readable explanation plus, for recipe failures, the
// recipe filename that failed validation (spec §4.A).
type ValidationError struct {
	Msg      string
	Filename string
}

func (e *ValidationError) Error() string {
	if e.Filename == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Msg)
}

func validationErr(filename, format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), Filename: filename}
}

// checkPackageName succeeds iff n is non-empty and every character is in
// [a-zA-Z0-9_-].
func checkPackageName(n string) error {
	if n == "" {
		return validationErr("", "package name must not be empty")
	}
	for _, r := range n {
		if !isNameRune(r) {
			return validationErr("", "package name %q: invalid character %q", n, r)
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	default:
		return false
	}
}

// validateRecipe enforces spec §4.A's recipe-document shape: name,
// description, license, and dependencies keys all pass their respective
// grammars. filename is attached to any resulting ValidationError.
// maxNameLength is the configurable cap on the recipe's name field (spec
// §9 Open Question; Registry wires its own nameMaxLength here).
func validateRecipe(doc map[string]any, filename string, maxNameLength int) error {
	name, ok := doc["name"].(string)
	if !ok {
		return validationErr(filename, "recipe field %q must be a string", "name")
	}
	if name == "" || len(name) > maxNameLength {
		return validationErr(filename, "recipe name %q must be 1..%d characters", name, maxNameLength)
	}
	if name != strings.ToLower(name) {
		return validationErr(filename, "recipe name %q must be lower-case", name)
	}
	if err := checkPackageName(name); err != nil {
		return validationErr(filename, "recipe name %q: %v", name, err)
	}

	if s, ok := doc["description"].(string); !ok || s == "" {
		return validationErr(filename, "recipe field %q must be a non-empty string", "description")
	}
	if s, ok := doc["license"].(string); !ok || s == "" {
		return validationErr(filename, "recipe field %q must be a non-empty string", "license")
	}

	if deps, ok := doc["dependencies"].(map[string]any); ok {
		for key := range deps {
			if err := checkDependencyKey(key); err != nil {
				return validationErr(filename, "dependency %q: %v", key, err)
			}
		}
	}

	return nil
}

// checkDependencyKey validates a "dependencies" key: a colon-separated
// path of segments, each passing checkPackageName, except that a leading
// empty segment (":sub") is permitted to mean "subpackage of self".
func checkDependencyKey(key string) error {
	segments := strings.Split(key, ":")
	for i, seg := range segments {
		if seg == "" && i == 0 {
			continue
		}
		if seg == "" {
			return validationErr("", "empty path segment")
		}
		if err := checkPackageName(seg); err != nil {
			return err
		}
	}
	return nil
}
