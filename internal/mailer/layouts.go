package mailer

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/crm-electoral-api/internal/models"
)

// nl2br escapes text and turns newlines into <br> tags
func nl2br(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

var funcs = template.FuncMap{"nl2br": nl2br}

const header = `<div style="background-color: #005c2b; padding: 20px 25px;">
<h1 style="color: white; margin: 0; font-size: 22px;">Fuerza del Pueblo Europa</h1>
<p style="color: rgba(255,255,255,0.85); margin: 4px 0 0 0; font-size: 13px;">{{.Tagline}}</p>
</div>`

var individualTmpl = template.Must(template.New("individual").Funcs(funcs).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
` + header + `
<div style="background: #f9f9f9; padding: 30px 20px;">
<div style="background: white; padding: 20px; border-left: 4px solid #005c2b;">{{nl2br .Message}}</div>
<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666;">
<p><strong>Fuerza del Pueblo Europa</strong></p>
<p>Este es un correo automático del CRM Electoral. Por favor, no responder a este email.</p>
</div>
</div>
</body></html>`))

var broadcastTmpl = template.Must(template.New("broadcast").Funcs(funcs).Parse(`<div style="font-family: 'Segoe UI', Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; border: 1px solid #e0e0e0;">
` + header + `
<div style="background-color: #f8f9fa; padding: 10px 25px; border-bottom: 1px solid #e0e0e0;">
<p style="margin: 0; font-size: 12px; font-weight: 600; color: #666; text-transform: uppercase;">Comunicado Oficial</p>
</div>
<div style="padding: 25px; background: white;">
<p style="margin: 0 0 15px 0; font-size: 15px;">Estimado/a <strong>{{.Nombre}}</strong>,</p>
<div style="line-height: 1.7; font-size: 15px; color: #444;">{{nl2br .Message}}</div>
</div>
<div style="background-color: #f8f9fa; padding: 20px 25px; font-size: 11px; text-align: center; color: #aaa;">
Recibes este correo porque estás registrado en el CRM Electoral de la FP Europa.
</div>
</div>`))

var contactTmpl = template.Must(template.New("contact").Funcs(funcs).Parse(`<div style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; border: 1px solid #ddd; padding: 20px;">
<h2 style="color: #005c2b; border-bottom: 2px solid #005c2b; padding-bottom: 10px;">Nuevo Mensaje de Contacto</h2>
<p><strong>Nombre:</strong> {{.Nombre}}</p>
<p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
<p><strong>Asunto:</strong> {{.Asunto}}</p>
<div style="background-color: #f9f9f9; padding: 15px; margin-top: 20px;">
<h3 style="margin-top: 0; font-size: 14px; color: #666;">Mensaje:</h3>
<p>{{nl2br .Mensaje}}</p>
</div>
<p style="font-size: 12px; color: #999; margin-top: 30px;">Este mensaje fue enviado desde el formulario de contacto de Centinela Electoral.</p>
</div>`))

// RenderIndividual renders a one-to-one message
func RenderIndividual(message string) (string, error) {
	return render(individualTmpl, struct{ Tagline, Message string }{"Comunicación Oficial", message})
}

// RenderBroadcast renders a broadcast message greeting the recipient by name
func RenderBroadcast(nombre, message string) (string, error) {
	return render(broadcastTmpl, struct{ Tagline, Nombre, Message string }{"Secretaría de Asuntos Electorales", nombre, message})
}

// RenderContact renders a contact form submission for the admin inbox
func RenderContact(m *models.ContactMessage) (string, error) {
	return render(contactTmpl, m)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
