package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFileType is returned for extensions outside pdf, docx and txt.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrDecode is returned when the bytes cannot be parsed in the declared format.
	ErrDecode = errors.New("document decode failed")
)

// UnsupportedFileTypeError carries the rejected extension.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %q", e.Ext)
}

func (e *UnsupportedFileTypeError) Unwrap() error {
	return ErrUnsupportedFileType
}

func decodeErr(kind string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDecode, kind, err)
}
