package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/outbound"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
	"github.com/justicia-digital/exhorto-interchange/internal/wire"
)

func writeEnvelope(w http.ResponseWriter, message string, data any) {
	env, _ := wire.NewEnvelope(message, data)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

// remotePeerServer fakes the counterpart judiciary for the delivery jobs.
func remotePeerServer(t *testing.T) *httptest.Server {
	t.Helper()
	now := wire.NewDateTime(time.Now())
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exh_exhortos":
			writeEnvelope(w, "exhorto registrado", map[string]string{"exhortoOrigenId": "eco"})
		case "/exh_exhortos/archivos":
			writeEnvelope(w, "archivo recibido", wire.ExhortoArchivoUploadData{
				Acuse: &wire.ExhortoAcuse{
					ExhortoOrigenID:    r.FormValue("exhortoOrigenId"),
					FolioSeguimiento:   "FOLIO-NL-000000A",
					FechaHoraRecepcion: now,
				},
			})
		case "/exh_exhortos/respuestas":
			writeEnvelope(w, "respuesta registrada", map[string]string{"ok": "1"})
		case "/exh_exhortos/respuestas/archivos":
			writeEnvelope(w, "archivo recibido", wire.RespuestaArchivoUploadData{
				Acuse: &wire.RespuestaAcuse{
					ExhortoID:          r.FormValue("exhortoId"),
					RespuestaOrigenID:  r.FormValue("respuestaOrigenId"),
					FechaHoraRecepcion: now,
				},
			})
		case "/exh_exhortos/actualizaciones":
			var p wire.ActualizacionPayload
			_ = json.NewDecoder(r.Body).Decode(&p)
			writeEnvelope(w, "actualización registrada", wire.ActualizacionAcuse{
				ExhortoID:             p.ExhortoID,
				ActualizacionOrigenID: p.ActualizacionOrigenID,
				FechaHora:             now,
			})
		case "/exh_exhortos/promociones":
			writeEnvelope(w, "promoción registrada", map[string]string{"ok": "1"})
		case "/exh_exhortos/promociones/archivos":
			writeEnvelope(w, "archivo recibido", wire.PromocionArchivoUploadData{
				Acuse: &wire.PromocionAcuse{
					FolioOrigenPromocion:   r.FormValue("folioOrigenPromocion"),
					FolioPromocionRecibida: "2026-NLPROM12345",
					FechaHoraRecepcion:     now,
				},
			})
		case "/exh_exhortos/materias":
			writeEnvelope(w, "materias", []wire.MateriaItem{{Clave: "CIV", Nombre: "Civil"}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func outboundFixture(t *testing.T, base string) (*OutboundService, *gorm.DB, *memStore, *domain.Municipio, *domain.Municipio) {
	t.Helper()
	db := openTestDB(t)
	local, remote := seedCatalogs(t, db)
	if base != "" {
		setPeerEndpoints(t, db, base)
	}
	store := newMemStore()
	client := outbound.New(outbound.Options{Timeout: 5 * time.Second, Logger: nop()})
	svc := NewOutboundService(db, client, store, testInterchange(), nop())
	return svc, db, store, local, remote
}

// porEnviarExhorto persists an internal exhorto ready to send, with its
// archivo bytes already in storage.
func porEnviarExhorto(t *testing.T, db *gorm.DB, store *memStore, local, remote *domain.Municipio) *domain.Exhorto {
	t.Helper()
	url := store.put("exh-exhortos", "oficio.pdf", []byte("oficio"))
	e := &domain.Exhorto{
		ExhortoOrigenID:         "origen-env-1",
		MunicipioOrigenID:       local.ID,
		MunicipioDestinoID:      remote.ID,
		MateriaClave:            "CIV",
		MateriaNombre:           "Civil",
		JuzgadoOrigenNombre:     "Juzgado Primero Civil",
		NumeroExpedienteOrigen:  "123/2026",
		TipoJuicioAsuntoDelitos: "Ordinario Civil",
		Remitente:               domain.RemitenteInterno,
		Estado:                  domain.EstadoPorEnviar,
		Partes: []domain.Parte{
			{Nombre: "Juan", Genero: "M", TipoParte: domain.TipoPartePromovente},
		},
		Archivos: []domain.Archivo{
			{NombreArchivo: "oficio.pdf", HashSha256: "cafe01", TipoDocumento: domain.TipoDocumentoOficio,
				URL: url, TamanoBytes: 6, Estado: domain.EstadoRecibido},
		},
	}
	if err := repo.CreateExhorto(context.Background(), db, e); err != nil {
		t.Fatalf("create exhorto: %v", err)
	}
	return e
}

func TestEnviarExhortoDeliversAcuse(t *testing.T) {
	srv := remotePeerServer(t)
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	if err := svc.EnviarExhorto(ctx, e.ID); err != nil {
		t.Fatalf("enviar: %v", err)
	}
	got, err := repo.GetExhorto(ctx, db, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Estado != domain.EstadoRecibidoConExito {
		t.Fatalf("estado = %s", got.Estado)
	}
	if got.FolioSeguimiento == nil || *got.FolioSeguimiento != "FOLIO-NL-000000A" {
		t.Fatalf("folio: %v", got.FolioSeguimiento)
	}
	if got.PaqueteEnviado == "" || got.AcuseRecibido == "" {
		t.Fatal("raw package and acuse must be retained")
	}
	if got.AcuseFechaHoraRecepcion == nil {
		t.Fatal("acuse fecha missing")
	}
}

func TestEnviarExhortoAgotaIntentos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	// First retriable failure books the attempt and keeps POR ENVIAR.
	if err := svc.EnviarExhorto(ctx, e.ID); err == nil {
		t.Fatal("want error from unreachable peer")
	}
	got, _ := repo.GetExhorto(ctx, db, e.ID)
	if got.Estado != domain.EstadoPorEnviar || got.PorEnviarIntentos != 1 {
		t.Fatalf("after first failure: estado=%s intentos=%d", got.Estado, got.PorEnviarIntentos)
	}

	// The second failure exhausts the budget of two attempts.
	if err := svc.EnviarExhorto(ctx, e.ID); err == nil {
		t.Fatal("want error from unreachable peer")
	}
	got, _ = repo.GetExhorto(ctx, db, e.ID)
	if got.Estado != domain.EstadoIntentosAgotados || got.PorEnviarIntentos != 2 {
		t.Fatalf("after second failure: estado=%s intentos=%d", got.Estado, got.PorEnviarIntentos)
	}
}

func TestEnviarExhortoRespuestaInvalidaReintentaUnaVez(t *testing.T) {
	var llamadas int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llamadas++
		if llamadas == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>mantenimiento</html>"))
	}))
	defer srv.Close()

	db := openTestDB(t)
	local, remote := seedCatalogs(t, db)
	setPeerEndpoints(t, db, srv.URL)
	store := newMemStore()
	client := outbound.New(outbound.Options{Timeout: 5 * time.Second, Logger: nop()})
	cfg := testInterchange()
	cfg.MaxSendAttempts = 5
	svc := NewOutboundService(db, client, store, cfg, nop())
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	// A malformed answer burns one attempt and keeps POR ENVIAR.
	if err := svc.EnviarExhorto(ctx, e.ID); err == nil {
		t.Fatal("want error from malformed answer")
	}
	got, _ := repo.GetExhorto(ctx, db, e.ID)
	if got.Estado != domain.EstadoPorEnviar || got.PorEnviarIntentos != 1 {
		t.Fatalf("after first failure: estado=%s intentos=%d", got.Estado, got.PorEnviarIntentos)
	}

	// A transport failure in between resets the consecutive-answer count.
	if err := svc.EnviarExhorto(ctx, e.ID); err == nil {
		t.Fatal("want error from unreachable peer")
	}
	got, _ = repo.GetExhorto(ctx, db, e.ID)
	if got.Estado != domain.EstadoPorEnviar {
		t.Fatalf("after transport failure: estado=%s", got.Estado)
	}

	// So the next malformed answer still gets booked as a plain retry.
	if err := svc.EnviarExhorto(ctx, e.ID); err == nil {
		t.Fatal("want error from malformed answer")
	}
	got, _ = repo.GetExhorto(ctx, db, e.ID)
	if got.Estado != domain.EstadoPorEnviar || got.PorEnviarIntentos != 3 {
		t.Fatalf("after third failure: estado=%s intentos=%d", got.Estado, got.PorEnviarIntentos)
	}

	// A second malformed answer in a row gives the send up even with
	// attempts to spare.
	if err := svc.EnviarExhorto(ctx, e.ID); err == nil {
		t.Fatal("want error from malformed answer")
	}
	got, _ = repo.GetExhorto(ctx, db, e.ID)
	if got.Estado != domain.EstadoIntentosAgotados || got.PorEnviarIntentos != 4 {
		t.Fatalf("after consecutive malformed answers: estado=%s intentos=%d", got.Estado, got.PorEnviarIntentos)
	}
}

func TestEnviarExhortoFatalFailureDoesNotBurnAttempts(t *testing.T) {
	// No endpoints provisioned: MissingConfiguration is not retriable.
	svc, db, store, local, remote := outboundFixture(t, "")
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	if err := svc.EnviarExhorto(ctx, e.ID); err == nil {
		t.Fatal("want configuration error")
	}
	got, _ := repo.GetExhorto(ctx, db, e.ID)
	if got.Estado != domain.EstadoPorEnviar || got.PorEnviarIntentos != 0 {
		t.Fatalf("fatal failure must not count: estado=%s intentos=%d", got.Estado, got.PorEnviarIntentos)
	}
}

func TestEnviarExhortoRequiresPorEnviar(t *testing.T) {
	srv := remotePeerServer(t)
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	if err := db.Model(&domain.Exhorto{}).Where("id = ?", e.ID).
		Update("estado", domain.EstadoPendiente).Error; err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.EnviarExhorto(ctx, e.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestEnviarRespuestaConcluyeExhorto(t *testing.T) {
	srv := remotePeerServer(t)
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	ctx := context.Background()

	// A received exhorto already diligenciado, with a drafted respuesta.
	folio := "FOLIO-CO-0000001"
	e := &domain.Exhorto{
		ExhortoOrigenID:         "nl-origen-9",
		FolioSeguimiento:        &folio,
		MunicipioOrigenID:       remote.ID,
		MunicipioDestinoID:      local.ID,
		MateriaClave:            "CIV",
		MateriaNombre:           "Civil",
		JuzgadoOrigenNombre:     "Juzgado Segundo Civil",
		NumeroExpedienteOrigen:  "55/2026",
		TipoJuicioAsuntoDelitos: "Ordinario Civil",
		Remitente:               domain.RemitenteExterno,
		Estado:                  domain.EstadoDiligenciado,
	}
	if err := repo.CreateExhorto(ctx, db, e); err != nil {
		t.Fatalf("create exhorto: %v", err)
	}
	url := store.put("exh-respuestas", "respuesta.pdf", []byte("respuesta"))
	r := &domain.Respuesta{
		ExhortoID:          e.ID,
		RespuestaOrigenID:  "resp-origen-9",
		MunicipioTurnadoID: 30,
		TipoDiligenciado:   domain.DiligenciadoTotal,
		Remitente:          domain.RemitenteInterno,
		Estado:             domain.EstadoPorEnviar,
		Archivos: []domain.Archivo{
			{NombreArchivo: "respuesta.pdf", HashSha256: "feed01", TipoDocumento: domain.TipoDocumentoOficio,
				URL: url, TamanoBytes: 9, Estado: domain.EstadoRecibido},
		},
	}
	if err := repo.CreateRespuesta(ctx, db, r); err != nil {
		t.Fatalf("create respuesta: %v", err)
	}

	if err := svc.EnviarRespuesta(ctx, r.ID); err != nil {
		t.Fatalf("enviar: %v", err)
	}
	gotR, _ := repo.GetRespuesta(ctx, db, r.ID)
	if gotR.Estado != domain.EstadoEnviado || gotR.FechaHoraRecepcion == nil {
		t.Fatalf("respuesta: estado=%s", gotR.Estado)
	}
	gotE, _ := repo.GetExhorto(ctx, db, e.ID)
	if gotE.Estado != domain.EstadoContestado {
		t.Fatalf("exhorto = %s; want %s", gotE.Estado, domain.EstadoContestado)
	}
}

func TestEnviarActualizacion(t *testing.T) {
	srv := remotePeerServer(t)
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	a := &domain.Actualizacion{
		ExhortoID:             e.ID,
		ActualizacionOrigenID: "act-origen-1",
		TipoActualizacion:     domain.ActualizacionNumeroExhorto,
		FechaHora:             time.Now().UTC(),
		Descripcion:           "99/2026",
		Remitente:             domain.RemitenteInterno,
		Estado:                domain.EstadoPorEnviar,
	}
	if err := repo.CreateActualizacion(ctx, db, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.EnviarActualizacion(ctx, a.ID); err != nil {
		t.Fatalf("enviar: %v", err)
	}
	got, _ := repo.GetActualizacion(ctx, db, a.ID)
	if got.Estado != domain.EstadoEnviado {
		t.Fatalf("estado = %s", got.Estado)
	}
}

func TestEnviarActualizacionFallidaQuedaRechazada(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	a := &domain.Actualizacion{
		ExhortoID:             e.ID,
		ActualizacionOrigenID: "act-origen-2",
		TipoActualizacion:     domain.ActualizacionAreaTurnado,
		FechaHora:             time.Now().UTC(),
		Descripcion:           "Juzgado Tercero",
		Remitente:             domain.RemitenteInterno,
		Estado:                domain.EstadoPorEnviar,
	}
	if err := repo.CreateActualizacion(ctx, db, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.EnviarActualizacion(ctx, a.ID); err == nil {
		t.Fatal("want delivery error")
	}
	got, _ := repo.GetActualizacion(ctx, db, a.ID)
	if got.Estado != domain.EstadoRechazado {
		t.Fatalf("estado = %s; want %s", got.Estado, domain.EstadoRechazado)
	}
}

func TestEnviarPromocion(t *testing.T) {
	srv := remotePeerServer(t)
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	ctx := context.Background()

	folio := "FOLIO-NL-000000B"
	e := porEnviarExhorto(t, db, store, local, remote)
	if err := db.Model(&domain.Exhorto{}).Where("id = ?", e.ID).Updates(map[string]any{
		"estado": domain.EstadoRecibidoConExito, "folio_seguimiento": folio,
	}).Error; err != nil {
		t.Fatalf("setup: %v", err)
	}

	url := store.put("exh-promociones", "promocion.pdf", []byte("escrito"))
	p := &domain.Promocion{
		ExhortoID:            e.ID,
		FolioOrigenPromocion: "prom-origen-1",
		Remitente:            domain.RemitenteInterno,
		Estado:               domain.EstadoPorEnviar,
		Promoventes: []domain.Parte{
			{Nombre: "María", Genero: "F", TipoParte: domain.TipoPartePromovente},
		},
		Archivos: []domain.Archivo{
			{NombreArchivo: "promocion.pdf", HashSha256: "beef01", TipoDocumento: domain.TipoDocumentoAnexo,
				URL: url, TamanoBytes: 7, Estado: domain.EstadoRecibido},
		},
	}
	if err := repo.CreatePromocion(ctx, db, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.EnviarPromocion(ctx, p.ID); err != nil {
		t.Fatalf("enviar: %v", err)
	}
	got, _ := repo.GetPromocion(ctx, db, p.ID)
	if got.Estado != domain.EstadoEnviado {
		t.Fatalf("estado = %s", got.Estado)
	}
	if got.FolioPromocionRecibida == nil || *got.FolioPromocionRecibida != "2026-NLPROM12345" {
		t.Fatalf("folio recibida: %v", got.FolioPromocionRecibida)
	}
}

func TestConsultarExhortoPorFolio(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeEnvelope(w, "exhorto consultado", wire.ExhortoConsulta{
			Estado:            domain.EstadoRecibido,
			AreaTurnadoID:     "J3",
			AreaTurnadoNombre: "Juzgado Tercero Civil",
		})
	}))
	defer srv.Close()
	svc, db, store, local, remote := outboundFixture(t, srv.URL)
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	// Before the acuse assigns a folio there is nothing to address the
	// consulta with.
	if err := svc.ConsultarExhorto(ctx, e.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("sin folio: %v", err)
	}

	folio := "FOLIO-NL-000000C"
	if err := db.Model(&domain.Exhorto{}).Where("id = ?", e.ID).Updates(map[string]any{
		"estado": domain.EstadoRecibidoConExito, "folio_seguimiento": folio,
	}).Error; err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.ConsultarExhorto(ctx, e.ID); err != nil {
		t.Fatalf("consultar: %v", err)
	}
	// The destination is asked by the folio it assigned, not by our origin id.
	if gotPath != "/exh_exhortos/"+folio {
		t.Fatalf("path = %q; want it addressed by folio", gotPath)
	}
	got, _ := repo.GetExhorto(ctx, db, e.ID)
	if got.AreaTurnadoID != "J3" || got.AreaTurnadoNombre != "Juzgado Tercero Civil" {
		t.Fatalf("turnado not refreshed: %q %q", got.AreaTurnadoID, got.AreaTurnadoNombre)
	}
}

func TestConsultarMateriasRefreshesPeer(t *testing.T) {
	srv := remotePeerServer(t)
	defer srv.Close()
	svc, db, _, _, _ := outboundFixture(t, srv.URL)
	ctx := context.Background()

	if err := svc.ConsultarMaterias(ctx, "19"); err != nil {
		t.Fatalf("consultar: %v", err)
	}
	peer, _ := repo.GetPeerByEstadoClave(ctx, db, "19")
	var materias []wire.MateriaItem
	if err := json.Unmarshal([]byte(peer.Materias), &materias); err != nil {
		t.Fatalf("materias crudas: %v", err)
	}
	if len(materias) != 1 || materias[0].Clave != "CIV" {
		t.Fatalf("got %+v", materias)
	}
}

func TestEncolarPorEnviar(t *testing.T) {
	svc, db, store, local, remote := outboundFixture(t, "")
	e := porEnviarExhorto(t, db, store, local, remote)
	ctx := context.Background()

	n, err := svc.EncolarPorEnviar(ctx)
	if err != nil || n != 1 {
		t.Fatalf("primer barrido: n=%d err=%v", n, err)
	}
	// The pending task keeps the slot; a second sweep enqueues nothing new.
	n, err = svc.EncolarPorEnviar(ctx)
	if err != nil || n != 0 {
		t.Fatalf("segundo barrido: n=%d err=%v", n, err)
	}
	tasks, _ := repo.ListEnqueuedTasks(ctx, db, 10)
	if len(tasks) != 1 || tasks[0].EntityID != e.ID {
		t.Fatalf("tareas: %+v", tasks)
	}
}
