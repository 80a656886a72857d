// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// The engine exposes two surfaces with different contracts:
//   - Peer endpoints under /exh_exhortos speak the interstate envelope and
//     authenticate with X-Api-Key. They are not rate limited because a single
//     remote judiciary legitimately bursts during file batches.
//   - The operator API under cfg.APIBasePath uses the {request_id, code,
//     message} error shape and the token-bucket rate limiter.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/config"
	"github.com/justicia-digital/exhorto-interchange/internal/http/handlers"
	"github.com/justicia-digital/exhorto-interchange/internal/http/middleware"
	"github.com/justicia-digital/exhorto-interchange/internal/services"
	"github.com/justicia-digital/exhorto-interchange/internal/storage"
)

// maxUploadBytes caps request bodies on the peer surface; multipart overhead
// rides on top of the 32 MiB archivo cap enforced by the handlers.
const maxUploadBytes = 33 << 20

// maxOperatorBytes caps request bodies on the operator API, which only
// carries JSON metadata.
const maxOperatorBytes = 1 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, the health and metrics endpoints, the peer-facing protocol routes,
// and the operator API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (peer surface allows multipart uploads)
//  6. Metrics
//  7. CORS and Security headers
//  8. Per-group auth and rate limiting
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store storage.BlobStore, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (X-Api-Key is masked built-in)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit sized for multipart archivo uploads
	r.Use(limitBody(maxUploadBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Api-Key", "X-Usuario"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Api-Key", "X-Usuario"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS).
	// Responses carry partes and promoventes PII, so caching is disabled.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db/store/config
	inboundSvc := services.NewInboundService(db, store, cfg.Interchange, cfg.Storage, log.Logger)
	exhortoSvc := services.NewExhortoService(db, cfg.Interchange, log.Logger)
	filingSvc := services.NewFilingService(db, cfg.Interchange, log.Logger)

	xh := handlers.NewExchangeHandler(inboundSvc)
	oh := handlers.NewOperatorHandler(exhortoSvc, filingSvc)

	// Peer-facing protocol surface. Authenticated by X-Api-Key against the
	// peer registry; never rate limited.
	peer := r.Group("/exh_exhortos", middleware.PeerAuth(db))
	{
		peer.GET("/materias", xh.Materias)
		peer.POST("", xh.RecibirExhorto)
		peer.POST("/archivos", xh.RecibirExhortoArchivo)
		peer.GET("/:folio_seguimiento", xh.ConsultarExhorto)

		peer.POST("/respuestas", xh.RecibirRespuesta)
		peer.POST("/respuestas/archivos", xh.RecibirRespuestaArchivo)

		peer.POST("/actualizaciones", xh.RecibirActualizacion)

		peer.POST("/promociones", xh.RecibirPromocion)
		peer.POST("/promociones/archivos", xh.RecibirPromocionArchivo)
	}

	// Operator API (internal judiciary staff and systems)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUsuarioOrIP())
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(limitBody(maxOperatorBytes), gzip.Gzip(gzip.DefaultCompression), rl.Handler())
	{
		// Exhortos
		api.POST("/exhortos", oh.CrearExhorto)
		api.GET("/exhortos", oh.ListarExhortos)
		api.GET("/exhortos/:id", oh.GetExhorto)
		api.POST("/exhortos/:id/enviar", oh.EnviarExhorto)
		api.POST("/exhortos/:id/consultar", oh.ConsultarExhorto)
		api.POST("/exhortos/:id/reiniciar", oh.ReiniciarExhorto)
		api.POST("/exhortos/:id/cancelar", oh.Transicionar("cancelar"))
		api.POST("/exhortos/:id/archivar", oh.Transicionar("archivar"))
		api.POST("/exhortos/:id/transferir", oh.Transicionar("transferir"))
		api.POST("/exhortos/:id/aceptar", oh.Transicionar("aceptar"))
		api.POST("/exhortos/:id/rechazar", oh.Transicionar("rechazar"))
		api.POST("/exhortos/:id/diligenciar", oh.Transicionar("diligenciar"))
		api.GET("/exhortos/:id/auditoria", oh.Auditoria)

		// Filings attached to an exhorto
		api.POST("/exhortos/:id/respuestas", oh.CrearRespuesta)
		api.GET("/exhortos/:id/respuestas", oh.ListarRespuestas)
		api.POST("/exhortos/:id/actualizaciones", oh.CrearActualizacion)
		api.GET("/exhortos/:id/actualizaciones", oh.ListarActualizaciones)
		api.POST("/exhortos/:id/promociones", oh.CrearPromocion)
		api.GET("/exhortos/:id/promociones", oh.ListarPromociones)

		// Background tasks
		api.GET("/tareas/:id", oh.GetTarea)
		api.DELETE("/tareas/:id", oh.CancelarTarea)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
