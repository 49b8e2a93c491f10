package attendance

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNoRecord       = errors.New("no attendance record for this date")
	ErrRecordExists   = errors.New("an attendance record already exists for this date")
	ErrUnknownStudent = errors.New("student is not part of this record")
	ErrNotSynced      = errors.New("attendance record has not been published")
	ErrStale          = errors.New("attendance response superseded by a newer request")
)

// PartialSaveError is returned by Save when one of the two calls succeeded
// and the other failed. The succeeded half is already part of the record's
// remote snapshot, so a retry only sends Failed.
type PartialSaveError struct {
	Op      string   // the failed call: "mark present" or "remove present"
	Applied []string // ids the server accepted
	Failed  []string // ids still to send
	Err     error
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("partial save: %s failed for [%s]: %v", e.Op, strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialSaveError) Unwrap() error { return e.Err }

func (e *PartialSaveError) Cause() error { return e.Err }

// IsPartialSave reports whether err carries a *PartialSaveError.
func IsPartialSave(err error) bool {
	var pe *PartialSaveError
	return errors.As(err, &pe)
}
