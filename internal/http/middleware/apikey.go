// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the protocol's peer authentication: every request to
// a peer-facing endpoint must present the X-Api-Key credential provisioned
// in the peer registry. The authenticated peer is stored in the Gin context
// so handlers know which judiciary is calling.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
	"github.com/justicia-digital/exhorto-interchange/internal/wire"
)

// peerKey is the Gin context key under which the authenticated peer is stored.
const peerKey = "peer"

// apiKeyHeader carries the peer credential.
const apiKeyHeader = "X-Api-Key"

// PeerAuth returns a middleware that resolves the X-Api-Key header against
// the peer registry and aborts with 401 in the protocol's envelope shape
// when the credential is missing or unknown.
func PeerAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		peer, err := repo.GetPeerByAPIKey(c.Request.Context(), db, key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, wire.Envelope{
				Success: false,
				Message: "no autorizado",
				Errors:  []string{"X-Api-Key inválida"},
			})
			return
		}
		c.Set(peerKey, peer)
		c.Next()
	}
}

// PeerFrom returns the authenticated peer stored by PeerAuth, or nil.
func PeerFrom(c *gin.Context) *domain.Peer {
	if v, ok := c.Get(peerKey); ok {
		if p, ok := v.(*domain.Peer); ok {
			return p
		}
	}
	return nil
}
