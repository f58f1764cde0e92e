package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Error Kinds
// ============================================================================

// kindError is a sentinel error that may have a parent kind.
//
// Kinds form a small tree rooted at ErrFilesystemOperationFailed so callers
// can match at whatever granularity they need:
//
//	if errors.Is(err, storage.ErrUnableToCheckExistence) {
//	    // matches both the file and the directory variant
//	}
type kindError struct {
	msg    string
	op     string
	parent error
}

func (k *kindError) Error() string { return k.msg }
func (k *kindError) Unwrap() error { return k.parent }

func newKind(msg, op string, parent error) *kindError {
	return &kindError{msg: msg, op: op, parent: parent}
}

// ErrFilesystemOperationFailed is the root of every operation failure kind.
var ErrFilesystemOperationFailed = errors.New("filesystem operation failed")

// Operation failure kinds.
//
// Adapters translate every backend-native failure into exactly one of these
// kinds before it crosses the Adapter boundary. Use errors.Is to match a kind
// and errors.As with *OperationError to retrieve the failing location(s).
var (
	ErrUnableToReadFile        = newKind("unable to read file", "READ", ErrFilesystemOperationFailed)
	ErrUnableToWriteFile       = newKind("unable to write file", "WRITE", ErrFilesystemOperationFailed)
	ErrUnableToUpdateFile      = newKind("unable to update file", "UPDATE", ErrFilesystemOperationFailed)
	ErrUnableToDeleteFile      = newKind("unable to delete file", "DELETE", ErrFilesystemOperationFailed)
	ErrUnableToDeleteDirectory = newKind("unable to delete directory", "DELETE_DIRECTORY", ErrFilesystemOperationFailed)
	ErrUnableToCreateDirectory = newKind("unable to create directory", "CREATE_DIRECTORY", ErrFilesystemOperationFailed)
	ErrUnableToMoveFile        = newKind("unable to move file", "MOVE", ErrFilesystemOperationFailed)
	ErrUnableToCopyFile        = newKind("unable to copy file", "COPY", ErrFilesystemOperationFailed)
	ErrUnableToSetVisibility   = newKind("unable to set visibility", "SET_VISIBILITY", ErrFilesystemOperationFailed)
	ErrUnableToListContents    = newKind("unable to list contents", "LIST_CONTENTS", ErrFilesystemOperationFailed)
	ErrUnableToProvideChecksum = newKind("unable to provide checksum", "CHECKSUM", ErrFilesystemOperationFailed)

	ErrUnableToRetrieveMetadata = newKind("unable to retrieve metadata", "RETRIEVE_METADATA", ErrFilesystemOperationFailed)

	ErrUnableToCheckExistence          = newKind("unable to check existence", "EXISTENCE_CHECK", ErrFilesystemOperationFailed)
	ErrUnableToCheckFileExistence      = newKind("unable to check file existence", "FILE_EXISTS", ErrUnableToCheckExistence)
	ErrUnableToCheckDirectoryExistence = newKind("unable to check directory existence", "DIRECTORY_EXISTS", ErrUnableToCheckExistence)

	ErrCorruptedPathDetected     = newKind("corrupted path detected", "NORMALIZE_PATH", ErrFilesystemOperationFailed)
	ErrPathTraversalDetected     = newKind("path traversal detected", "NORMALIZE_PATH", ErrFilesystemOperationFailed)
	ErrSymbolicLinkEncountered   = newKind("symbolic link encountered", "LIST_CONTENTS", ErrFilesystemOperationFailed)
	ErrUnreadableFileEncountered = newKind("unreadable file encountered", "LIST_CONTENTS", ErrFilesystemOperationFailed)
	ErrUnableToMountFilesystem   = newKind("unable to mount filesystem", "MOUNT", ErrFilesystemOperationFailed)

	ErrUnableToResolveFilesystemMount = newKind("unable to resolve filesystem mount", "RESOLVE_MOUNT", ErrFilesystemOperationFailed)
)

// Supporting sentinels that describe a reason rather than an operation.
var (
	// ErrInvalidVisibility is returned when a visibility value is neither
	// public nor private.
	ErrInvalidVisibility = errors.New("invalid visibility provided")

	// ErrChecksumAlgoNotSupported is returned by a ChecksumProvider that
	// cannot compute the requested algorithm natively. The Filesystem falls
	// back to hashing the stream when it sees this error.
	ErrChecksumAlgoNotSupported = errors.New("checksum algorithm not supported")

	// ErrListingConsumed is yielded when a single-pass listing is iterated
	// a second time.
	ErrListingConsumed = errors.New("directory listing already consumed")
)

// ============================================================================
// Metadata Fields
// ============================================================================

// MetadataField names the attribute requested when metadata retrieval fails.
type MetadataField string

const (
	FieldFileSize     MetadataField = "file_size"
	FieldVisibility   MetadataField = "visibility"
	FieldMimeType     MetadataField = "mime_type"
	FieldLastModified MetadataField = "last_modified"
)

// ============================================================================
// OperationError
// ============================================================================

// OperationError carries the structured context of a failed operation.
//
// Kind is one of the Err* kinds above. Location is set for single-path
// operations, Source and Destination for move and copy. Requested holds the
// path as the caller originally supplied it, before normalization, when it
// differs from Location.
type OperationError struct {
	Kind        error
	Location    string
	Source      string
	Destination string
	Field       MetadataField
	Reason      string
	Requested   string
	Err         error
}

// Operation returns the short operation name of the failure kind.
func (e *OperationError) Operation() string {
	var k *kindError
	if errors.As(e.Kind, &k) {
		return k.op
	}
	return ""
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	switch {
	case e.Source != "" || e.Destination != "":
		fmt.Fprintf(&b, " from %q to %q", e.Source, e.Destination)
	case e.Location != "" || e.Kind == ErrUnableToListContents:
		fmt.Fprintf(&b, " at location %q", e.Location)
	}

	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	if e.Requested != "" {
		fmt.Fprintf(&b, " (requested as %q)", e.Requested)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// reasonOf returns an explicit reason, or the cause's message.
func reasonOf(reason string, cause error) string {
	if reason == "" && cause != nil {
		return cause.Error()
	}
	return reason
}

// ============================================================================
// Constructors
// ============================================================================

func locationError(kind error, location, reason string, cause error) error {
	return &OperationError{Kind: kind, Location: location, Reason: reasonOf(reason, cause), Err: cause}
}

// UnableToReadFile reports a failed read of location.
func UnableToReadFile(location, reason string, cause error) error {
	return locationError(ErrUnableToReadFile, location, reason, cause)
}

// UnableToWriteFile reports a failed write of location.
func UnableToWriteFile(location, reason string, cause error) error {
	return locationError(ErrUnableToWriteFile, location, reason, cause)
}

// UnableToUpdateFile reports a failed in-place update of location.
func UnableToUpdateFile(location, reason string, cause error) error {
	return locationError(ErrUnableToUpdateFile, location, reason, cause)
}

// UnableToDeleteFile reports a failed delete of location.
func UnableToDeleteFile(location, reason string, cause error) error {
	return locationError(ErrUnableToDeleteFile, location, reason, cause)
}

// UnableToDeleteDirectory reports a failed recursive delete of location.
func UnableToDeleteDirectory(location, reason string, cause error) error {
	return locationError(ErrUnableToDeleteDirectory, location, reason, cause)
}

// UnableToCreateDirectory reports a failed directory creation.
func UnableToCreateDirectory(location, reason string, cause error) error {
	return locationError(ErrUnableToCreateDirectory, location, reason, cause)
}

// UnableToSetVisibility reports a failed visibility change.
func UnableToSetVisibility(location, reason string, cause error) error {
	return locationError(ErrUnableToSetVisibility, location, reason, cause)
}

// UnableToListContents reports a failed listing of location.
func UnableToListContents(location string, deep bool, cause error) error {
	reason := "shallow listing"
	if deep {
		reason = "deep listing"
	}
	if cause != nil {
		reason += ": " + cause.Error()
	}
	return locationError(ErrUnableToListContents, location, reason, cause)
}

// UnableToProvideChecksum reports that no checksum could be computed.
func UnableToProvideChecksum(location, reason string, cause error) error {
	return locationError(ErrUnableToProvideChecksum, location, reason, cause)
}

// UnableToRetrieveMetadata reports a failure to determine field for location.
func UnableToRetrieveMetadata(location string, field MetadataField, reason string, cause error) error {
	return &OperationError{
		Kind:     ErrUnableToRetrieveMetadata,
		Location: location,
		Field:    field,
		Reason:   reasonOf(reason, cause),
		Err:      cause,
	}
}

// UnableToCheckFileExistence reports a failed file existence check.
func UnableToCheckFileExistence(location string, cause error) error {
	return locationError(ErrUnableToCheckFileExistence, location, "", cause)
}

// UnableToCheckDirectoryExistence reports a failed directory existence check.
func UnableToCheckDirectoryExistence(location string, cause error) error {
	return locationError(ErrUnableToCheckDirectoryExistence, location, "", cause)
}

func transferError(kind error, source, destination, reason string, cause error) error {
	return &OperationError{
		Kind:        kind,
		Source:      source,
		Destination: destination,
		Reason:      reasonOf(reason, cause),
		Err:         cause,
	}
}

// UnableToMoveFile reports a failed move from source to destination.
func UnableToMoveFile(source, destination, reason string, cause error) error {
	return transferError(ErrUnableToMoveFile, source, destination, reason, cause)
}

// UnableToCopyFile reports a failed copy from source to destination.
func UnableToCopyFile(source, destination, reason string, cause error) error {
	return transferError(ErrUnableToCopyFile, source, destination, reason, cause)
}

// CorruptedPathDetected reports a path containing control characters.
func CorruptedPathDetected(path string) error {
	return &OperationError{
		Kind:     ErrCorruptedPathDetected,
		Location: path,
		Reason:   "path contains control characters",
	}
}

// PathTraversalDetected reports a path that resolves above the root.
func PathTraversalDetected(path string) error {
	return &OperationError{
		Kind:     ErrPathTraversalDetected,
		Location: path,
		Reason:   "path resolves outside of the root",
	}
}

// SymbolicLinkEncountered reports a symbolic link where links are not allowed.
func SymbolicLinkEncountered(location string) error {
	return &OperationError{Kind: ErrSymbolicLinkEncountered, Location: location}
}

// UnreadableFileEncountered reports an entry that could not be inspected.
func UnreadableFileEncountered(location string, cause error) error {
	return locationError(ErrUnreadableFileEncountered, location, "", cause)
}

// UnableToMountFilesystem reports an invalid mount registration.
func UnableToMountFilesystem(reason string) error {
	return &OperationError{Kind: ErrUnableToMountFilesystem, Reason: reason}
}

// UnableToResolveFilesystemMount reports a path that cannot be routed.
func UnableToResolveFilesystemMount(path, reason string) error {
	return &OperationError{Kind: ErrUnableToResolveFilesystemMount, Location: path, Reason: reason}
}

// ============================================================================
// Helpers
// ============================================================================

// IsOperationError reports whether err already belongs to the taxonomy.
func IsOperationError(err error) bool {
	return errors.Is(err, ErrFilesystemOperationFailed)
}

// RelocateError rewrites the locations carried by the first OperationError
// in err's chain and returns the rewritten copy in place of err.
//
// Decorators use it to replace internally prefixed paths with the paths
// their callers used. Errors outside the taxonomy are returned unchanged.
func RelocateError(err error, relocate func(string) string) error {
	var oe *OperationError
	if err == nil || !errors.As(err, &oe) {
		return err
	}

	relocated := *oe
	if relocated.Location != "" {
		relocated.Location = relocate(relocated.Location)
	}
	if relocated.Source != "" {
		relocated.Source = relocate(relocated.Source)
	}
	if relocated.Destination != "" {
		relocated.Destination = relocate(relocated.Destination)
	}
	relocated.Requested = ""

	return &relocated
}
