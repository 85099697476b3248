package bot

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/Gsr1989/Aguascalientes/core/telegram"
	"github.com/Gsr1989/Aguascalientes/core/telegram/commands"
	tghelpers "github.com/Gsr1989/Aguascalientes/core/telegram/helpers"
	"github.com/Gsr1989/Aguascalientes/internal/permit"
)

var priceKeywords = []string{"costo", "precio", "cuanto", "cuánto", "pago", "monto", "depósito", "deposito"}

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Información del trámite",
	})
	reg.RegisterCommand("/permiso", commands.Command{
		Handler:     a.handlePermiso,
		Description: "Iniciar un permiso de circulación",
	})
	reg.RegisterCommand("/timers", commands.Command{
		Handler:     a.handleTimers,
		Description: "Timers de pago activos",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (a *App) handleStart(c tele.Context) error {
	a.fsm.Clear(c.Sender().ID)
	ttlHours := a.cfg.Permits.PendingTTLMinutes / 60
	return tghelpers.SendHTML(c, fmt.Sprintf(
		"🏛️ <b>Sistema Digital de Permisos %s</b>\n\n💰 <b>Costo:</b> $%d MXN\n⏰ <b>Tiempo límite:</b> %d horas (si no envía comprobante o clave admin, se elimina)\n📋 Use /permiso para iniciar su trámite",
		a.cfg.Permits.DisplayName, a.cfg.Permits.PriceMXN, ttlHours,
	))
}

func (a *App) handlePermiso(c tele.Context) error {
	userID := c.Sender().ID
	prompt := "<b>Paso 1/7:</b> Ingresa la <b>MARCA</b> del vehículo:"
	if activos := a.service.ActiveFolios(userID); len(activos) > 0 {
		ttlHours := a.cfg.Permits.PendingTTLMinutes / 60
		prompt = fmt.Sprintf(
			"📋 <b>Folios activos:</b> %s\nCada folio expira si no envías comprobante en <b>%dh</b>.\n\n%s",
			strings.Join(activos, ", "), ttlHours, prompt,
		)
	}
	a.fsm.SetState(userID, stateMarca)
	return tghelpers.SendHTML(c, prompt)
}

// handleTimers is the operator's view of the deadline registry.
func (a *App) handleTimers(c tele.Context) error {
	count := a.service.PendingCount()
	if count == 0 {
		return tghelpers.SendHTML(c, "⏱️ No hay timers activos.")
	}
	return tghelpers.SendHTML(c, fmt.Sprintf("⏱️ <b>Timers activos:</b> %d", count))
}

// handleProofPhoto treats any photo outside a form as a payment proof for the
// sender's most recent open folio.
func (a *App) handleProofPhoto(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	folio, err := a.service.SubmitProof(ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, permit.ErrNoPendingFolio) {
			return tghelpers.SendHTML(c, "ℹ️ No tienes folios pendientes. Usa /permiso para iniciar uno nuevo.")
		}
		return err
	}
	return tghelpers.SendHTML(c, fmt.Sprintf(
		"✅ <b>Comprobante recibido</b>\n\n📄 <b>Folio:</b> %s\n⏹️ Timer detenido. Tu folio se conserva en el sistema mientras verificamos.",
		folio,
	))
}

// handleFallbackText classifies free text: admin override codes first, then
// price questions, then a short pointer to the form.
func (a *App) handleFallbackText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(strings.ToUpper(text), a.cfg.Permits.AdminMarker) {
		return a.handleAdminCode(c, text)
	}

	lower := strings.ToLower(text)
	for _, kw := range priceKeywords {
		if strings.Contains(lower, kw) {
			return tghelpers.SendHTML(c, fmt.Sprintf(
				"💰 <b>Costo del permiso:</b> $%d MXN\nUsa /permiso para iniciar tu trámite.",
				a.cfg.Permits.PriceMXN,
			))
		}
	}

	return tghelpers.SendHTML(c, fmt.Sprintf(
		"🏛️ Sistema Digital %s. Usa /permiso para iniciar.", a.cfg.Permits.DisplayName,
	))
}

func (a *App) handleAdminCode(c tele.Context, text string) error {
	ctx := tghelpers.BuildContext(c)
	folio, err := a.service.AdminValidate(ctx, text)
	if err != nil {
		if errors.Is(err, permit.ErrBadAdminCode) {
			return tghelpers.SendHTML(c, fmt.Sprintf(
				"⚠️ Formato: <code>%s%s2</code> (folio debe iniciar con %s).",
				a.cfg.Permits.AdminMarker, a.cfg.Permits.FolioPrefix, a.cfg.Permits.FolioPrefix,
			))
		}
		return err
	}
	return tghelpers.SendHTML(c, fmt.Sprintf(
		"✅ <b>Validación admin exitosa</b>\n\n📄 <b>Folio:</b> %s\n⏹️ Timer detenido y folio preservado.",
		folio,
	))
}
