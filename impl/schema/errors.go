/*
Package schema validates decoded manifest JSON against the OCI image manifest
shape and converts it into the typed ocispec.Manifest. Everything past the
schema boundary works on the typed manifest only.
*/
package schema

import "fmt"

// ValidationError reports the first manifest key that is missing or holds an
// unacceptable value.
type ValidationError struct {
	// Field is the path of the offending key, e.g. "layers[1].digest". Empty if
	// the document as a whole could not be decoded.
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missing(path string) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("manifest must contain key %q", path),
	}
}

func invalid(path string, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("%s %s", path, fmt.Sprintf(format, args...)),
	}
}
