package converter

import (
	"errors"
	"fmt"

	"github.com/otruyen/otruyen-api/internal/epub"
)

// Kind classifies a request-level failure of the reading pipeline.
type Kind string

const (
	KindArchiveNotFound         Kind = "ArchiveNotFound"
	KindArchiveCorrupt          Kind = "ArchiveCorrupt"
	KindChapterNotFound         Kind = "ChapterNotFound"
	KindChapterNumberOutOfRange Kind = "ChapterNumberOutOfRange"
)

// Error is a structured pipeline failure: a kind plus a human message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// archiveError normalizes an archive open failure. Anything that is not a
// missing file is treated as a corrupt archive.
func archiveError(path string, err error) error {
	if errors.Is(err, epub.ErrArchiveNotFound) {
		return newError(KindArchiveNotFound, err, "archive %s does not exist", path)
	}
	return newError(KindArchiveCorrupt, err, "archive %s cannot be read", path)
}

// partError classifies a failure to read one part of an opened archive.
func partError(name string, err error) error {
	if errors.Is(err, epub.ErrFileNotFound) {
		return newError(KindChapterNotFound, err, "part %s is missing from the archive", name)
	}
	return newError(KindArchiveCorrupt, err, "part %s cannot be read", name)
}
