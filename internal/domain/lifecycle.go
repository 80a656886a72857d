package domain

import (
	"fmt"

	"github.com/justicia-digital/exhorto-interchange/internal/exerr"
)

// Events accepted by the exhorto state machine. Origin-side events drive
// the sending lifecycle; destination-side events drive fulfillment.
const (
	EventoEncolarEnvio      = "enqueue_send"
	EventoEnvioExitoso      = "send_success"
	EventoEnvioFallido      = "send_failure"
	EventoIntentosAgotados  = "attempts_exhausted"
	EventoReiniciar         = "reset"
	EventoRespuestaRecibida = "response_received"
	EventoArchivar          = "archive"
	EventoCancelar          = "cancel"
	EventoRecibir           = "receive"
	EventoTransferir        = "transfer"
	EventoAceptar           = "accept"
	EventoRechazar          = "refuse"
	EventoDiligenciar       = "diligenciar"
	EventoResponderExitoso  = "respond_success"
)

// transitionKey pairs a from-state with an event.
type transitionKey struct {
	from  string
	event string
}

// exhortoTransitions is the labeled transition table of the exhorto. Any
// (state, event) pair absent from the table is an illegal transition. The
// empty from-state admits EventoRecibir only: the destination mirror entity
// is born in RECIBIDO.
var exhortoTransitions = map[transitionKey]string{
	// Origin side.
	{EstadoPendiente, EventoEncolarEnvio}:             EstadoPorEnviar,
	{EstadoPorEnviar, EventoEnvioExitoso}:             EstadoRecibidoConExito,
	{EstadoPorEnviar, EventoEnvioFallido}:             EstadoPorEnviar,
	{EstadoPorEnviar, EventoIntentosAgotados}:         EstadoIntentosAgotados,
	{EstadoIntentosAgotados, EventoReiniciar}:         EstadoPorEnviar,
	{EstadoRecibidoConExito, EventoRespuestaRecibida}: EstadoRespondido,
	{EstadoRespondido, EventoArchivar}:                EstadoArchivado,
	{EstadoPendiente, EventoCancelar}:                 EstadoCancelado,
	{EstadoPorEnviar, EventoCancelar}:                 EstadoCancelado,

	// Destination side. A mirror entity is announced in PENDIENTE and
	// completes into RECIBIDO when its last archivo is verified.
	{"", EventoRecibir}:                          EstadoRecibido,
	{EstadoPendiente, EventoRecibir}:             EstadoRecibido,
	{EstadoRecibido, EventoTransferir}:           EstadoTransfiriendo,
	{EstadoTransfiriendo, EventoAceptar}:         EstadoProcesando,
	{EstadoProcesando, EventoRechazar}:           EstadoRechazado,
	{EstadoRechazado, EventoReiniciar}:           EstadoPendiente,
	{EstadoProcesando, EventoDiligenciar}:        EstadoDiligenciado,
	{EstadoDiligenciado, EventoResponderExitoso}: EstadoContestado,
}

// filingTransitions governs actualizaciones and promociones, which share
// the PENDIENTE / POR ENVIAR / ENVIADO / RECHAZADO lifecycle.
var filingTransitions = map[transitionKey]string{
	{EstadoPendiente, EventoEncolarEnvio}: EstadoPorEnviar,
	{EstadoPorEnviar, EventoEnvioExitoso}: EstadoEnviado,
	{EstadoPorEnviar, EventoEnvioFallido}: EstadoRechazado,
	{EstadoRechazado, EventoEncolarEnvio}: EstadoPorEnviar,
	{EstadoPendiente, EventoCancelar}:     EstadoCancelado,
	{EstadoPorEnviar, EventoCancelar}:     EstadoCancelado,
	{"", EventoRecibir}:                   EstadoRecibido,
}

// NextExhortoState resolves the exhorto transition for event on from,
// returning exerr.NotValidParam for any pair outside the table.
func NextExhortoState(from, event string) (string, error) {
	to, ok := exhortoTransitions[transitionKey{from, event}]
	if !ok {
		return "", exerr.Wrap(exerr.NotValidParam,
			fmt.Sprintf("transición ilegal del exhorto: %q con evento %q", from, event))
	}
	return to, nil
}

// NextFilingState resolves the transition of an actualizacion or promocion.
func NextFilingState(from, event string) (string, error) {
	to, ok := filingTransitions[transitionKey{from, event}]
	if !ok {
		return "", exerr.Wrap(exerr.NotValidParam,
			fmt.Sprintf("transición ilegal del trámite: %q con evento %q", from, event))
	}
	return to, nil
}
