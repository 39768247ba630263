package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm-electoral-api/internal/models"
)

func TestRenderIndividual_EscapesAndBreaksLines(t *testing.T) {
	html, err := RenderIndividual("Hola\n<script>x</script>")
	require.NoError(t, err)

	assert.Contains(t, html, "Fuerza del Pueblo Europa")
	assert.Contains(t, html, "#005c2b")
	assert.Contains(t, html, "Hola<br>&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
}

func TestRenderBroadcast_Greeting(t *testing.T) {
	html, err := RenderBroadcast("Ana", "Reunión el lunes")
	require.NoError(t, err)
	assert.Contains(t, html, "Estimado/a <strong>Ana</strong>")
	assert.Contains(t, html, "Reunión el lunes")
}

func TestRenderContact(t *testing.T) {
	html, err := RenderContact(&models.ContactMessage{
		Nombre: "Luis", Email: "luis@x.com", Asunto: "Duda", Mensaje: "línea 1\nlínea 2",
	})
	require.NoError(t, err)
	assert.Contains(t, html, `href="mailto:luis@x.com"`)
	assert.Contains(t, html, "línea 1<br>línea 2")
}

func TestDisabledMailer(t *testing.T) {
	m := NewDisabled()
	assert.False(t, m.Enabled())

	_, err := m.Send(context.Background(), &Email{To: []string{"a@x.com"}})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = m.SendBatch(context.Background(), []*Email{{To: []string{"a@x.com"}}})
	assert.ErrorIs(t, err, ErrDisabled)
}
