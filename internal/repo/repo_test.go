package repo

import (
	"context"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

// openTestDB opens a throwaway SQLite database with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedCatalogs provisions two estados with one municipio each and a remote
// peer for estado 19, returning the local and remote municipios.
func seedCatalogs(t *testing.T, db *gorm.DB) (local, remote *domain.Municipio) {
	t.Helper()
	ctx := context.Background()

	estados := []domain.Estado{
		{Clave: "05", Nombre: "Coahuila de Zaragoza"},
		{Clave: "19", Nombre: "Nuevo León"},
	}
	if err := SeedEstados(ctx, db, estados); err != nil {
		t.Fatalf("seed estados: %v", err)
	}
	coahuila, err := GetEstadoByClave(ctx, db, "05")
	if err != nil {
		t.Fatalf("estado 05: %v", err)
	}
	nuevoLeon, err := GetEstadoByClave(ctx, db, "19")
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

	if err := SeedMaterias(ctx, db, []domain.Materia{
		{Clave: "CIV", Nombre: "Civil"},
		{Clave: "FAM", Nombre: "Familiar"},
	}); err != nil {
		t.Fatalf("seed materias: %v", err)
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

	local, err = GetMunicipio(ctx, db, municipios[0].ID)
	if err != nil {
		t.Fatalf("municipio local: %v", err)
	}
	remote, err = GetMunicipio(ctx, db, municipios[1].ID)
	if err != nil {
		t.Fatalf("municipio remoto: %v", err)
	}
	return local, remote
}

// newTestExhorto builds an unsaved outbound exhorto rooted in the local
// municipio.
func newTestExhorto(local, remote *domain.Municipio) *domain.Exhorto {
	pat := "Pérez"
	return &domain.Exhorto{
		ExhortoOrigenID:         "origen-0001",
		MunicipioOrigenID:       local.ID,
		MunicipioDestinoID:      remote.ID,
		MateriaClave:            "CIV",
		MateriaNombre:           "Civil",
		JuzgadoOrigenNombre:     "Juzgado Primero Civil",
		NumeroExpedienteOrigen:  "123/2026",
		TipoJuicioAsuntoDelitos: "Ordinario Civil",
		Fojas:                   10,
		Remitente:               domain.RemitenteInterno,
		Estado:                  domain.EstadoPendiente,
		Partes: []domain.Parte{
			{Nombre: "Juan", ApellidoPaterno: &pat, Genero: "M", TipoParte: domain.TipoPartePromovente},
			{Nombre: "Acme SA", Genero: "-", EsPersonaMoral: true, TipoParte: domain.TipoParteDemandado},
		},
		Archivos: []domain.Archivo{
			{NombreArchivo: "oficio.pdf", HashSha256: "cafe01", TipoDocumento: domain.TipoDocumentoOficio, Estado: domain.EstadoPendiente},
			{NombreArchivo: "anexo.pdf", HashSha256: "cafe02", TipoDocumento: domain.TipoDocumentoAnexo, Estado: domain.EstadoPendiente},
		},
	}
}
