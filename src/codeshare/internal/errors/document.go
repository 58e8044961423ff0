package errors

import (
	stderr "errors"
	"fmt"

	"github.com/codeshare/codeshare/src/codeshare/entity"
)

// DocumentNotFoundError indicates that a document is not tracked.
type DocumentNotFoundError struct {
	ID entity.DocumentID
}

// Error is an implementation of the error interface.
func (n *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document %q not found", n.ID)
}

// DocumentSizeLimitError indicates that a document exceeds the configured size limit.
type DocumentSizeLimitError struct {
	ID   entity.DocumentID
	Size int64
}

// Error is an implementation of the error interface.
func (n *DocumentSizeLimitError) Error() string {
	return fmt.Sprintf("document %q size of %d bytes exceeds permitted limit", n.ID, n.Size)
}

// IsDocumentNotFound reports whether the error means the document is untracked.
func IsDocumentNotFound(err error) bool {
	var notFound *DocumentNotFoundError
	return stderr.As(err, &notFound)
}
