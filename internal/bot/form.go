package bot

import (
	"fmt"
	"html"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	tele "gopkg.in/telebot.v4"

	"github.com/Gsr1989/Aguascalientes/core/logger"
	tghelpers "github.com/Gsr1989/Aguascalientes/core/telegram/helpers"
	"github.com/Gsr1989/Aguascalientes/core/telegram/state"
	"github.com/Gsr1989/Aguascalientes/internal/document"
	"github.com/Gsr1989/Aguascalientes/internal/permit"
)

// Form states, one per dialogue step.
const (
	stateMarca  state.State = "permiso_marca"
	stateLinea  state.State = "permiso_linea"
	stateAnio   state.State = "permiso_anio"
	stateSerie  state.State = "permiso_serie"
	stateMotor  state.State = "permiso_motor"
	stateColor  state.State = "permiso_color"
	stateNombre state.State = "permiso_nombre"
)

// sanitizeInput keeps letters, digits, spaces and -_./ then uppercases. An
// input that sanitizes to nothing re-prompts the step.
func sanitizeInput(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		case strings.ContainsRune("-_./", r):
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(strings.TrimSpace(b.String()))
}

func isFourDigitYear(text string) bool {
	if len(text) != 4 {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// registerFormStates binds every dialogue step to the FSM dispatcher.
func (a *App) registerFormStates() {
	steps := []struct {
		st     state.State
		key    string
		next   state.State
		prompt string
		reask  string
	}{
		{stateMarca, "marca", stateLinea, "<b>Paso 2/7:</b> Ingresa la <b>LÍNEA/MODELO</b>:", "⚠️ Por favor ingresa una marca válida:"},
		{stateLinea, "linea", stateAnio, "<b>Paso 3/7:</b> Ingresa el <b>AÑO (4 dígitos)</b>:", "⚠️ Por favor ingresa una línea/modelo válido:"},
		{stateSerie, "serie", stateMotor, "<b>Paso 5/7:</b> Ingresa el <b>NÚMERO DE MOTOR</b>:", "⚠️ Por favor ingresa un número de serie válido:"},
		{stateMotor, "motor", stateColor, "<b>Paso 6/7:</b> Ingresa el <b>COLOR</b>:", "⚠️ Por favor ingresa un número de motor válido:"},
		{stateColor, "color", stateNombre, "<b>Paso 7/7:</b> Ingresa el <b>NOMBRE COMPLETO del titular</b>:", "⚠️ Por favor ingresa un color válido:"},
	}
	for _, step := range steps {
		step := step
		state.RegisterHandler(step.st, func(c tele.Context) error {
			value := sanitizeInput(c.Text())
			if value == "" {
				return tghelpers.SendHTML(c, step.reask)
			}
			userID := c.Sender().ID
			a.fsm.SetTemp(userID, step.key, value)
			a.fsm.SetState(userID, step.next)
			return tghelpers.SendHTML(c, step.prompt)
		})
	}

	// The year step validates digits instead of sanitizing.
	state.RegisterHandler(stateAnio, func(c tele.Context) error {
		anio := strings.TrimSpace(c.Text())
		if !isFourDigitYear(anio) {
			return tghelpers.SendHTML(c, "⚠️ El año debe tener 4 dígitos. Intenta de nuevo:")
		}
		userID := c.Sender().ID
		a.fsm.SetTemp(userID, "anio", anio)
		a.fsm.SetState(userID, stateSerie)
		return tghelpers.SendHTML(c, "<b>Paso 4/7:</b> Ingresa el <b>NÚMERO DE SERIE</b>:")
	})

	state.RegisterHandler(stateNombre, a.finishForm)
}

func (a *App) tempString(userID int64, key string) string {
	v, ok := a.fsm.GetTemp(userID, key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// finishForm runs the last dialogue step: issue the folio, render the
// document and deliver both the PDF and the payment instructions.
func (a *App) finishForm(c tele.Context) error {
	nombre := sanitizeInput(c.Text())
	if nombre == "" {
		return tghelpers.SendHTML(c, "⚠️ Por favor ingresa un nombre válido:")
	}

	userID := c.Sender().ID
	sub := permit.Submission{
		Marca:  a.tempString(userID, "marca"),
		Linea:  a.tempString(userID, "linea"),
		Anio:   a.tempString(userID, "anio"),
		Serie:  a.tempString(userID, "serie"),
		Motor:  a.tempString(userID, "motor"),
		Color:  a.tempString(userID, "color"),
		Nombre: nombre,
	}
	if u := c.Sender().Username; u != "" {
		sub.Username = u
	}
	a.fsm.Clear(userID)

	ctx := tghelpers.BuildContext(c)
	issued, err := a.service.Issue(ctx, sub, userID)
	if err != nil {
		return tghelpers.SendHTML(c, fmt.Sprintf(
			"❌ <b>ERROR:</b> %s\n\nIntenta de nuevo con /permiso",
			html.EscapeString(err.Error()),
		))
	}

	_ = tghelpers.SendHTML(c, fmt.Sprintf(
		"🔄 <b>Generando permiso...</b>\n\n📄 <b>Folio:</b> %s\n👤 <b>Titular:</b> %s\nSe emitirá con QR que apunta directamente al estado del folio.",
		issued.Folio, nombre,
	))

	pdfPath, err := a.renderer.Render(document.Data{
		Folio:     issued.Folio,
		Marca:     sub.Marca,
		Linea:     sub.Linea,
		Anio:      sub.Anio,
		Serie:     sub.Serie,
		Motor:     sub.Motor,
		Color:     sub.Color,
		Nombre:    nombre,
		IssuedAt:  issued.IssuedAt,
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		logger.PDF.Error("document render failed",
			slog.String("event", "pdf.render"),
			slog.String("folio", issued.Folio),
			slog.String("err", err.Error()),
		)
		// The folio stays issued; the holder can still pay and request a
		// reissue of the document manually.
		return tghelpers.SendHTML(c, fmt.Sprintf(
			"❌ <b>ERROR:</b> %s\n\nEl folio <b>%s</b> fue emitido pero el documento no pudo generarse.",
			html.EscapeString(err.Error()), issued.Folio,
		))
	}

	caption := fmt.Sprintf(
		"📄 <b>PERMISO DIGITAL – %s</b>\n<b>Folio:</b> %s\n<b>Expedición:</b> %s\n<b>Vencimiento:</b> %s\n🔳 QR para verificación rápida de estado",
		strings.ToUpper(a.cfg.Permits.DisplayName),
		issued.Folio,
		issued.IssuedAt.Format("02/01/2006"),
		issued.ExpiresAt.Format("02/01/2006"),
	)
	doc := &tele.Document{
		File:     tele.FromDisk(pdfPath),
		FileName: filepath.Base(pdfPath),
		Caption:  caption,
	}
	if err := tghelpers.SendDocument(c, doc, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		logger.TG.Warn("document delivery failed",
			slog.String("event", "send.document"),
			slog.String("folio", issued.Folio),
			slog.String("err", err.Error()),
		)
	}

	ttlHours := int(time.Duration(a.cfg.Permits.PendingTTLMinutes) * time.Minute / time.Hour)
	return tghelpers.SendHTML(c, fmt.Sprintf(
		"💰 <b>INSTRUCCIONES DE PAGO</b>\n\n📄 <b>Folio:</b> %s\n💵 <b>Monto:</b> $%d MXN\n⏰ <b>Tiempo límite:</b> %d horas (si no envías comprobante, se elimina)\n\n"+
			"📸 <b>IMPORTANTE:</b> Envía la <b>foto</b> de tu comprobante aquí mismo para detener el timer.\n"+
			"🔑 <b>ADMIN:</b> Para validar manual, enviar <b>%s&lt;folio&gt;</b> (ej. <code>%s%s2</code>).",
		issued.Folio, a.cfg.Permits.PriceMXN, ttlHours,
		a.cfg.Permits.AdminMarker, a.cfg.Permits.AdminMarker, a.cfg.Permits.FolioPrefix,
	))
}
