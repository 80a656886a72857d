// Package services contains the business logic of the interchange engine:
// operator-facing exhorto management, the peer-facing receive flows, and the
// outbound send jobs executed by the task runner. Services orchestrate the
// repo, storage and outbound layers and write the audit trail.
package services

import "errors"

// Service-level sentinel errors. Handlers map these onto HTTP statuses.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("no existe")

	// ErrValidation indicates the input violates a protocol rule.
	ErrValidation = errors.New("entrada inválida")

	// ErrDuplicate indicates an entity with the same correlation key exists.
	ErrDuplicate = errors.New("ya existe")

	// ErrConflict indicates the requested transition is illegal in the
	// entity's current estado.
	ErrConflict = errors.New("estado en conflicto")

	// ErrHashMismatch indicates uploaded bytes do not match the announced
	// digests.
	ErrHashMismatch = errors.New("hash no coincide")

	// ErrUnavailable indicates a dependency (storage, database) failed.
	ErrUnavailable = errors.New("servicio no disponible")
)
