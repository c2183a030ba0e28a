package plugins

import "errors"

var (
	// ErrInvalidSpec is returned when a malformed CapabilitySpec is registered
	ErrInvalidSpec = errors.New("invalid capability spec")

	// ErrDuplicateSpec is returned when a second spec claims an already registered package path
	ErrDuplicateSpec = errors.New("duplicate capability spec")

	// ErrArchiveUnreadable marks a zip root that could not be opened or listed
	ErrArchiveUnreadable = errors.New("archive unreadable")

	// ErrTargetMissing marks an override whose base class is not registered
	ErrTargetMissing = errors.New("override target missing")

	// ErrModuleImport marks a module that failed while executing
	ErrModuleImport = errors.New("module import failed")

	// ErrNotDirectory is returned by PackArchive when the source is not a directory
	ErrNotDirectory = errors.New("not a directory")
)
