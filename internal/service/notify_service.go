package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/background"
	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/mailer"
	"github.com/crm-electoral-api/internal/messaging"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/validation"
)

// Communication kinds and states written to comunicaciones
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"

	StatusSent      = "enviado"
	StatusFailed    = "fallido"
	StatusGenerated = "enlace_generado"
)

// User-facing notices
const (
	noticeNoContacts     = "No hay contactos activos para enviar."
	noticeMissingContent = "Asunto y Mensaje son requeridos"
	noticeMissingContact = "Por favor completa todos los campos requeridos."
	noticeEmailSent      = "Email enviado correctamente"
	contactSubjectPrefix = "[Contacto Web] "
)

// EmailRequest is an individual email to one affiliate
type EmailRequest struct {
	Template string `json:"template"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
}

// BroadcastRequest is a mass email to a distribution list
type BroadcastRequest struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Audience string `json:"audience"`
	// Seccional narrows the affiliates audience; Operators are always confined to their own
	Seccional string `json:"seccional"`
}

// notifyService is the concrete implementation of NotifyService
type notifyService struct {
	repos  *repository.Repositories
	mailer mailer.Mailer
	runner *background.Runner
	cfg    *config.Config
	log    zerolog.Logger
}

// newNotifyService creates a new NotifyService
func newNotifyService(repos *repository.Repositories, m mailer.Mailer, runner *background.Runner, cfg *config.Config, log zerolog.Logger) *notifyService {
	return &notifyService{
		repos:  repos,
		mailer: m,
		runner: runner,
		cfg:    cfg,
		log:    log.With().Str("service", "notify").Logger(),
	}
}

// Templates lists the predefined messages
func (s *notifyService) Templates() []models.MessageTemplate {
	return messaging.Templates
}

func (s *notifyService) affiliate(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
	a, err := s.repos.Affiliate.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if !actor.CanManage(a.Seccional) {
		return nil, ErrForbidden
	}
	return a, nil
}

// WhatsAppLink builds a deep link to message an affiliate
func (s *notifyService) WhatsAppLink(ctx context.Context, actor models.Actor, affiliateID, template, message string) (string, error) {
	a, err := s.affiliate(ctx, actor, affiliateID)
	if err != nil {
		return "", err
	}

	subject, text := messaging.ResolveMessage(template, "", message)
	link, err := messaging.WhatsAppLink(a.Telefono, s.cfg.Org.PhoneCountryCode, text)
	if errors.Is(err, messaging.ErrNoPhone) {
		return "", invalid("telefono", "El afiliado no tiene teléfono registrado")
	}
	if err != nil {
		return "", err
	}

	s.record(&models.Communication{
		AffiliateID: a.ID,
		Tipo:        ChannelWhatsApp,
		Asunto:      subject,
		Contenido:   text,
		Estado:      StatusGenerated,
	})
	return link, nil
}

// SendEmail sends one email to an affiliate. A missing API key is reported
// as a warning in the result, not as an error.
func (s *notifyService) SendEmail(ctx context.Context, actor models.Actor, affiliateID string, req *EmailRequest) (*models.EmailResult, error) {
	a, err := s.affiliate(ctx, actor, affiliateID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Email) == "" {
		return nil, invalid("email", "El afiliado no tiene email registrado")
	}

	subject, text := messaging.ResolveMessage(req.Template, req.Subject, req.Message)
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(text) == "" {
		return nil, invalid("mensaje", noticeMissingContent)
	}

	if !s.mailer.Enabled() {
		return &models.EmailResult{Success: false, Warning: ErrMailerDisabled.Error()}, nil
	}

	html, err := mailer.RenderIndividual(text)
	if err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	id, err := s.mailer.Send(ctx, &mailer.Email{
		From:    s.cfg.Mail.FromNotifications,
		To:      []string{a.Email},
		Subject: subject,
		HTML:    html,
	})

	comm := &models.Communication{
		AffiliateID: a.ID,
		Tipo:        ChannelEmail,
		Asunto:      subject,
		Contenido:   text,
		Estado:      StatusSent,
		EmailID:     id,
	}
	if err != nil {
		comm.Estado = StatusFailed
		s.record(comm)
		s.log.Error().Err(err).Str("affiliate_id", a.ID).Msg("Failed to send email")
		return nil, fmt.Errorf("failed to send email: %w", err)
	}
	s.record(comm)

	return &models.EmailResult{Success: true, EmailID: id, Message: noticeEmailSent}, nil
}

// SendWelcome mails the welcome template to a newly registered affiliate.
// It is a no-op when email is disabled or the affiliate has no address.
func (s *notifyService) SendWelcome(ctx context.Context, a *models.Affiliate) error {
	if !s.mailer.Enabled() || strings.TrimSpace(a.Email) == "" {
		return nil
	}

	t := messaging.TemplateByKey(messaging.TemplateWelcome)
	html, err := mailer.RenderIndividual(t.Text)
	if err != nil {
		return fmt.Errorf("failed to render welcome email: %w", err)
	}

	id, err := s.mailer.Send(ctx, &mailer.Email{
		From:    s.cfg.Mail.FromNotifications,
		To:      []string{a.Email},
		Subject: t.Subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	return s.repos.Communication.Insert(ctx, &models.Communication{
		ID:          uuid.New().String(),
		AffiliateID: a.ID,
		Tipo:        ChannelEmail,
		Asunto:      t.Subject,
		Contenido:   t.Text,
		Estado:      StatusSent,
		FechaEnvio:  time.Now(),
		EmailID:     id,
	})
}

// Broadcast mails the same message to a whole audience in provider-sized
// batches. A failed batch counts all its recipients as errors and the
// remaining batches are still sent.
func (s *notifyService) Broadcast(ctx context.Context, actor models.Actor, req *BroadcastRequest) (*models.BroadcastResult, error) {
	subject := strings.TrimSpace(req.Subject)
	message := strings.TrimSpace(req.Message)
	if subject == "" || message == "" {
		return nil, invalid("mensaje", noticeMissingContent)
	}

	var recipients []models.Recipient
	var from string
	var batchSize int

	switch req.Audience {
	case models.AudienceContacts, "":
		if !actor.IsAdmin() {
			return nil, ErrForbidden
		}
		contacts, err := s.repos.Communication.ActiveContacts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load contacts: %w", err)
		}
		for _, c := range contacts {
			recipients = append(recipients, models.Recipient{Email: c.Email, Nombre: c.Nombre})
		}
		from, batchSize = s.cfg.Mail.FromBroadcast, s.cfg.Mail.ContactBatchSize
	case models.AudienceAffiliates:
		if !actor.IsAdmin() && !actor.IsOperator() {
			return nil, ErrForbidden
		}
		seccional := strings.TrimSpace(req.Seccional)
		if seccional == search.AllSeccionales {
			seccional = ""
		}
		if actor.IsOperator() {
			if actor.Seccional == "" {
				return nil, ErrForbidden
			}
			seccional = actor.Seccional
		}
		var err error
		recipients, err = s.repos.Affiliate.Recipients(ctx, seccional)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipients: %w", err)
		}
		from, batchSize = s.cfg.Mail.FromNotifications, s.cfg.Mail.AffiliateBatchSize
	default:
		return nil, invalid("audience", "Audiencia no válida")
	}

	if len(recipients) == 0 {
		return &models.BroadcastResult{Notice: noticeNoContacts}, nil
	}
	if !s.mailer.Enabled() {
		return nil, ErrMailerDisabled
	}

	result := &models.BroadcastResult{Total: len(recipients)}
	for _, chunk := range chunkRecipients(recipients, batchSize) {
		emails := make([]*mailer.Email, 0, len(chunk))
		for _, r := range chunk {
			html, err := mailer.RenderBroadcast(r.Nombre, message)
			if err != nil {
				result.Errors++
				continue
			}
			emails = append(emails, &mailer.Email{
				From:    from,
				To:      []string{r.Email},
				Subject: subject,
				HTML:    html,
			})
		}
		if len(emails) == 0 {
			continue
		}

		if _, err := s.mailer.SendBatch(ctx, emails); err != nil {
			result.Errors += len(emails)
			s.log.Error().Err(err).Int("batch", len(emails)).Msg("Broadcast batch failed")
			continue
		}
		result.Sent += len(emails)
	}

	s.log.Info().
		Str("actor", actor.DisplayName()).
		Str("audience", req.Audience).
		Int("total", result.Total).
		Int("sent", result.Sent).
		Int("errors", result.Errors).
		Msg("Broadcast finished")

	return result, nil
}

// Contact forwards a public contact form submission to the admin inbox
func (s *notifyService) Contact(ctx context.Context, msg *models.ContactMessage) error {
	msg.Nombre = strings.TrimSpace(msg.Nombre)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Asunto = strings.TrimSpace(msg.Asunto)
	msg.Mensaje = strings.TrimSpace(msg.Mensaje)

	if msg.Nombre == "" || msg.Email == "" || msg.Asunto == "" || msg.Mensaje == "" {
		return invalid("contact", noticeMissingContact)
	}
	if !validation.IsEmail(msg.Email) {
		return invalid("email", "Email tiene formato inválido")
	}
	if !s.mailer.Enabled() {
		return ErrMailerDisabled
	}

	html, err := mailer.RenderContact(msg)
	if err != nil {
		return fmt.Errorf("failed to render contact email: %w", err)
	}

	if _, err := s.mailer.Send(ctx, &mailer.Email{
		From:    s.cfg.Mail.FromContact,
		To:      []string{s.cfg.Mail.AdminInbox},
		ReplyTo: msg.Email,
		Subject: contactSubjectPrefix + msg.Asunto,
		HTML:    html,
	}); err != nil {
		return fmt.Errorf("failed to send contact email: %w", err)
	}
	return nil
}

// Communications lists the messages sent to an affiliate, newest first
func (s *notifyService) Communications(ctx context.Context, actor models.Actor, affiliateID string) ([]models.Communication, error) {
	a, err := s.repos.Affiliate.GetByID(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if !actor.CanView(a.Seccional) {
		return nil, ErrForbidden
	}

	items, err := s.repos.Communication.ListByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load communications: %w", err)
	}
	if items == nil {
		items = []models.Communication{}
	}
	return items, nil
}

// record writes a communication row off the request path
func (s *notifyService) record(c *models.Communication) {
	c.ID = uuid.New().String()
	c.FechaEnvio = time.Now()
	s.runner.Go("communication_record", func(ctx context.Context) error {
		return s.repos.Communication.Insert(ctx, c)
	})
}

func chunkRecipients(items []models.Recipient, size int) [][]models.Recipient {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]models.Recipient
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
