package billing

import (
	"context"
	"html/template"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/logger"
)

// notifyTenant sends a best-effort email to the tenant's contact. Every
// failure here is logged and swallowed; a notification must never unwind
// the state transition that triggered it.
func (s *Service) notifyTenant(ctx context.Context, tenantID uuid.UUID, build func(TenantContact) email.Message) {
	if s.sender == nil || s.tenants == nil {
		return
	}

	contact, err := s.tenants.Contact(ctx, tenantID)
	if err != nil {
		s.log.WarnContext(ctx, "skipping notification, tenant contact lookup failed",
			logger.TenantID(tenantID), logger.Error(err))
		return
	}

	if err := s.sender.SendEmail(ctx, build(contact)); err != nil {
		s.log.WarnContext(ctx, "failed to send tenant notification",
			logger.TenantID(tenantID), logger.Error(err))
	}
}

// alertOperator sends a best-effort notice to the operator address, used
// for events that need human reconciliation.
func (s *Service) alertOperator(ctx context.Context, subject, body string) {
	if s.sender == nil || s.cfg.OperatorEmail == "" {
		return
	}

	msg := email.Message{
		SendTo:   s.cfg.OperatorEmail,
		Subject:  subject,
		BodyHTML: "<p>" + template.HTMLEscapeString(body) + "</p>",
		Tag:      "operator-alert",
	}
	if err := s.sender.SendEmail(ctx, msg); err != nil {
		s.log.WarnContext(ctx, "failed to send operator alert", logger.Error(err))
	}
}
