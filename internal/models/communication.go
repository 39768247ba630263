package models

import (
	"time"
)

// Communication records one outbound message sent to an affiliate
type Communication struct {
	ID          string    `json:"id" db:"id"`
	AffiliateID string    `json:"afiliado_id" db:"afiliado_id"`
	Tipo        string    `json:"tipo" db:"tipo"`
	Asunto      string    `json:"asunto" db:"asunto"`
	Contenido   string    `json:"contenido" db:"contenido"`
	Estado      string    `json:"estado" db:"estado"`
	FechaEnvio  time.Time `json:"fecha_envio" db:"fecha_envio"`
	EmailID     string    `json:"email_id,omitempty" db:"email_id"`
}

// Contact is an entry of the broadcast distribution list
type Contact struct {
	ID     string `json:"id" db:"id"`
	Email  string `json:"email" db:"email"`
	Nombre string `json:"nombre" db:"nombre"`
	Activo bool   `json:"activo" db:"activo"`
}

// Recipient is a single addressee of a broadcast
type Recipient struct {
	Email  string
	Nombre string
}

// MessageTemplate is a predefined outbound message
type MessageTemplate struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Broadcast audiences
const (
	AudienceContacts   = "contacts"
	AudienceAffiliates = "affiliates"
)

// BroadcastResult reports explicit per-recipient counts of a broadcast
type BroadcastResult struct {
	Total  int    `json:"total"`
	Sent   int    `json:"sent"`
	Errors int    `json:"errors"`
	Notice string `json:"message,omitempty"`
}

// EmailResult is the outcome of a single send
type EmailResult struct {
	Success bool   `json:"success"`
	EmailID string `json:"email_id,omitempty"`
	Warning string `json:"warning,omitempty"`
	Message string `json:"message,omitempty"`
}

// ContactMessage is a message from the public contact form
type ContactMessage struct {
	Nombre  string `json:"nombre"`
	Email   string `json:"email"`
	Asunto  string `json:"asunto"`
	Mensaje string `json:"mensaje"`
}
