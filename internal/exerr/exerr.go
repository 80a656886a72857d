// Package exerr defines the typed error kinds shared by the interchange
// engine. Every failure that crosses a layer boundary is classified into one
// of these kinds so that the task runner can decide between retrying,
// halting, or surfacing the failure to the operator.
//
// Kinds are sentinel errors; wrap them with Wrap/Wrapf and test with
// errors.Is:
//
//	if errors.Is(err, exerr.Connection) { /* retriable */ }
package exerr

import (
	"errors"
	"fmt"
)

// Error kinds. Connection and NotValidAnswer are the only retriable kinds;
// everything else is fatal to the triggering operation.
var (
	// NotExists indicates a referenced entity (exhorto, peer, municipio) is absent.
	NotExists = errors.New("not exists")

	// NotValidParam indicates ill-formed input such as a bad UUID or an
	// unknown enum value.
	NotValidParam = errors.New("not valid param")

	// IsDeleted indicates the target entity is in a tombstoned state.
	IsDeleted = errors.New("is deleted")

	// Empty indicates a required collection (partes, archivos) has no members.
	Empty = errors.New("empty")

	// MissingConfiguration indicates a required runtime setting is unset.
	MissingConfiguration = errors.New("missing configuration")

	// Connection indicates a transport-level failure: timeout, DNS, TLS,
	// or a non-2xx status from the remote peer.
	Connection = errors.New("connection failure")

	// NotValidAnswer indicates a syntactically valid HTTP response whose
	// body violates the envelope contract. Retriable, but the sender caps
	// consecutive occurrences at one retry.
	NotValidAnswer = errors.New("not valid answer")

	// BucketNotFound indicates the configured blob storage bucket is absent.
	BucketNotFound = errors.New("bucket not found")

	// FileNotFound indicates the requested blob is absent from storage.
	FileNotFound = errors.New("file not found")

	// Upload indicates a blob storage write failed.
	Upload = errors.New("upload failure")
)

// Wrap annotates an error kind with a message.
func Wrap(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Wrapf annotates an error kind with a formatted message.
func Wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Retriable reports whether the task runner may retry the operation that
// produced err.
func Retriable(err error) bool {
	return errors.Is(err, Connection) || errors.Is(err, NotValidAnswer)
}
