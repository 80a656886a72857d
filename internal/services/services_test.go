package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/config"
	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
)

// openTestDB opens a throwaway SQLite database with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedCatalogs provisions estados 05 and 19 with one municipio each, the
// initial materias, a tipo de diligencia, and a peer for estado 19.
func seedCatalogs(t *testing.T, db *gorm.DB) (local, remote *domain.Municipio) {
	t.Helper()
	ctx := context.Background()

	if err := repo.SeedEstados(ctx, db, []domain.Estado{
		{Clave: "05", Nombre: "Coahuila de Zaragoza"},
		{Clave: "19", Nombre: "Nuevo León"},
	}); err != nil {
		t.Fatalf("seed estados: %v", err)
	}
	coahuila, err := repo.GetEstadoByClave(ctx, db, "05")
	if err != nil {
		t.Fatalf("estado 05: %v", err)
	}
	nuevoLeon, err := repo.GetEstadoByClave(ctx, db, "19")
	if err != nil {
		t.Fatalf("estado 19: %v", err)
	}

	municipios := []domain.Municipio{
		{EstadoID: coahuila.ID, Clave: "030", Nombre: "Saltillo"},
		{EstadoID: nuevoLeon.ID, Clave: "039", Nombre: "Monterrey"},
	}
	if err := db.Create(&municipios).Error; err != nil {
		t.Fatalf("create municipios: %v", err)
	}

	if err := repo.SeedMaterias(ctx, db, []domain.Materia{
		{Clave: "CIV", Nombre: "Civil"},
		{Clave: "FAM", Nombre: "Familiar"},
	}); err != nil {
		t.Fatalf("seed materias: %v", err)
	}
	if err := db.Create(&domain.TipoDiligencia{Clave: "OFI", Descripcion: "Oficio"}).Error; err != nil {
		t.Fatalf("create tipo diligencia: %v", err)
	}

	peer := domain.Peer{
		EstadoID:    nuevoLeon.ID,
		Clave:       "PJENL",
		Descripcion: "Poder Judicial de Nuevo León",
		APIKey:      "llave-nl",
	}
	if err := db.Create(&peer).Error; err != nil {
		t.Fatalf("create peer: %v", err)
	}

	local, err = repo.GetMunicipio(ctx, db, municipios[0].ID)
	if err != nil {
		t.Fatalf("municipio local: %v", err)
	}
	remote, err = repo.GetMunicipio(ctx, db, municipios[1].ID)
	if err != nil {
		t.Fatalf("municipio remoto: %v", err)
	}
	return local, remote
}

// setPeerEndpoints points every endpoint of the PJENL peer at base.
func setPeerEndpoints(t *testing.T, db *gorm.DB, base string) {
	t.Helper()
	err := db.Model(&domain.Peer{}).Where("clave = ?", "PJENL").Updates(map[string]any{
		"endpoint_consultar_materias":                base + "/exh_exhortos/materias",
		"endpoint_recibir_exhorto":                   base + "/exh_exhortos",
		"endpoint_recibir_exhorto_archivo":           base + "/exh_exhortos/archivos",
		"endpoint_consultar_exhorto":                 base + "/exh_exhortos",
		"endpoint_recibir_respuesta_exhorto":         base + "/exh_exhortos/respuestas",
		"endpoint_recibir_respuesta_exhorto_archivo": base + "/exh_exhortos/respuestas/archivos",
		"endpoint_actualizar_exhorto":                base + "/exh_exhortos/actualizaciones",
		"endpoint_recibir_promocion":                 base + "/exh_exhortos/promociones",
		"endpoint_recibir_promocion_archivo":         base + "/exh_exhortos/promociones/archivos",
	}).Error
	if err != nil {
		t.Fatalf("set endpoints: %v", err)
	}
}

// testInterchange is the protocol config the service tests run under.
func testInterchange() config.InterchangeConfig {
	return config.InterchangeConfig{
		EstadoClave:     "05",
		RequestTimeout:  5 * time.Second,
		MaxSendAttempts: 2,
		RetryDelay:      time.Minute,
		LocalTimezone:   "UTC",
	}
}

func testBuckets() config.StorageConfig {
	return config.StorageConfig{
		BucketExhortos:    "exh-exhortos",
		BucketRespuestas:  "exh-respuestas",
		BucketPromociones: "exh-promociones",
	}
}

// memStore is an in-memory BlobStore keyed by durable URL.
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (m *memStore) put(bucket, name string, data []byte) string {
	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, name)
	m.mu.Lock()
	m.blobs[url] = data
	m.mu.Unlock()
	return url
}

func (m *memStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	return m.put(bucket, name, data), nil
}

func (m *memStore) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[blobURL]
	if !ok {
		return nil, fmt.Errorf("no existe el blob %q", blobURL)
	}
	return data, nil
}

func (m *memStore) Delete(ctx context.Context, blobURL string) error {
	m.mu.Lock()
	delete(m.blobs, blobURL)
	m.mu.Unlock()
	return nil
}

func nop() zerolog.Logger { return zerolog.Nop() }
