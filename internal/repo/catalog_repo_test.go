package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

func TestSeedEstadosUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := SeedEstados(ctx, db, []domain.Estado{{Clave: "05", Nombre: "Coahuila"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Re-seeding the same clave updates the name instead of failing.
	if err := SeedEstados(ctx, db, []domain.Estado{{Clave: "05", Nombre: "Coahuila de Zaragoza"}}); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	got, err := GetEstadoByClave(ctx, db, "05")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Nombre != "Coahuila de Zaragoza" {
		t.Fatalf("nombre = %q", got.Nombre)
	}
	var n int64
	db.Model(&domain.Estado{}).Count(&n)
	if n != 1 {
		t.Fatalf("estados = %d", n)
	}
}

func TestMunicipioLookups(t *testing.T) {
	db := openTestDB(t)
	local, _ := seedCatalogs(t, db)
	ctx := context.Background()

	m, err := GetMunicipioByClave(ctx, db, local.EstadoID, "030")
	if err != nil {
		t.Fatalf("by clave: %v", err)
	}
	if m.Nombre != "Saltillo" || m.Estado.Clave != "05" {
		t.Fatalf("got %+v", m)
	}
	if _, err := GetMunicipioByClave(ctx, db, local.EstadoID, "999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClaveMunicipio(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{1, "001"},
		{30, "030"},
		{570, "570"},
	}
	for _, tc := range cases {
		if got := ClaveMunicipio(tc.in); got != tc.want {
			t.Fatalf("ClaveMunicipio(%d) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaterias(t *testing.T) {
	db := openTestDB(t)
	seedCatalogs(t, db)
	ctx := context.Background()

	m, err := GetMateriaByClave(ctx, db, "CIV")
	if err != nil || m.Nombre != "Civil" {
		t.Fatalf("get: %+v, %v", m, err)
	}
	all, err := ListMaterias(ctx, db)
	if err != nil || len(all) != 2 {
		t.Fatalf("list: %d, %v", len(all), err)
	}
	if all[0].Clave != "CIV" || all[1].Clave != "FAM" {
		t.Fatalf("order: %+v", all)
	}
}

func TestPeerLookups(t *testing.T) {
	db := openTestDB(t)
	seedCatalogs(t, db)
	ctx := context.Background()

	p, err := GetPeerByEstadoClave(ctx, db, "19")
	if err != nil {
		t.Fatalf("by estado: %v", err)
	}
	if p.Clave != "PJENL" || p.Estado.Clave != "19" {
		t.Fatalf("got %+v", p)
	}
	if _, err := GetPeerByEstadoClave(ctx, db, "32"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unregistered estado: %v", err)
	}

	byKey, err := GetPeerByAPIKey(ctx, db, "llave-nl")
	if err != nil || byKey.ID != p.ID {
		t.Fatalf("by key: %v", err)
	}
	if _, err := GetPeerByAPIKey(ctx, db, "llave-mala"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad key: %v", err)
	}
	// An empty credential never matches, even if a peer row has no key yet.
	if _, err := GetPeerByAPIKey(ctx, db, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty key: %v", err)
	}
}

func TestUpdatePeerMaterias(t *testing.T) {
	db := openTestDB(t)
	seedCatalogs(t, db)
	ctx := context.Background()

	p, err := GetPeerByEstadoClave(ctx, db, "19")
	if err != nil {
		t.Fatalf("peer: %v", err)
	}
	raw := `[{"clave":"CIV","nombre":"Civil"}]`
	if err := UpdatePeerMaterias(ctx, db, p.ID, raw); err != nil {
		t.Fatalf("update: %v", err)
	}
	p, _ = GetPeerByEstadoClave(ctx, db, "19")
	if p.Materias != raw {
		t.Fatalf("materias = %q", p.Materias)
	}
}
