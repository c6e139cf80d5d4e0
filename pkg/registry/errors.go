// Package registry is the consistency core of the golden path registry. It
// orchestrates the content store and the metadata index so the two stay
// coherent under concurrent writers without a shared transaction, resolves
// version tokens, and enforces namespace ownership on every mutation.
package registry

import "errors"

// Error taxonomy surfaced to the transport layer. The HTTP layer maps these
// to status codes; the service never swallows store errors beyond the
// compensating actions documented on Create and Delete.
var (
	// ErrForbidden: the authenticated principal does not own the target
	// namespace.
	ErrForbidden = errors.New("namespace not owned by caller")

	// ErrNotFound: the golden path, version or content does not exist.
	ErrNotFound = errors.New("golden path not found")

	// ErrConflict: the (namespace, name, version) triple already exists.
	ErrConflict = errors.New("version already exists")

	// ErrDataIntegrity: metadata references content that cannot be found.
	// This inverts the orphan bias (blobs may dangle, records must not) and
	// should never occur under correct operation.
	ErrDataIntegrity = errors.New("metadata references missing content")
)

// ValidationError reports malformed input: a bad version string, a missing
// field or an ill-formed namespace.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
