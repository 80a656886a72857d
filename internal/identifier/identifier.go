// Package identifier generates the origin-side identifiers of the
// interchange protocol. Origin ids must be URL-friendly and unique within
// this peer because remote judiciaries use them as correlation keys.
package identifier

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// charset excludes lookalike characters (0/O, 1/I/L) so folios survive
// being read over the phone between juzgados.
const charset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewOrigenID returns a UUID string used as exhorto_origen_id,
// respuesta_origen_id or actualizacion_origen_id.
func NewOrigenID() string {
	return uuid.NewString()
}

// NewFolio returns a destination-assigned folio de seguimiento: a random
// 16-character token from a restricted alphabet.
func NewFolio() string {
	return token(16)
}

// NewFolioPromocion returns a folio for a received promocion, prefixed with
// the current year for operator-facing listings (e.g. "2026-8FKQ2M4TX9WVCB37").
func NewFolioPromocion(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Year(), token(16))
}

func token(n int) string {
	b := make([]byte, n)
	// rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
