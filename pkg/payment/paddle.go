package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
)

// Custom-data keys carrying the tenant attribution on every checkout object.
const (
	metaTenantID = "tenant_id"
	metaPlanType = "plan_type"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a new Paddle billing provider.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnv, cfg.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

// ParseWebhook validates and parses incoming webhook data from Paddle.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	// The SDK verifier works on an http.Request, so wrap the raw body.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var envelope struct {
		EventID    string         `json:"event_id"`
		EventType  string         `json:"event_type"`
		OccurredAt string         `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}

	event := &Event{
		ID:            envelope.EventID,
		Kind:          mapPaddleEventKind(envelope.EventType),
		ProviderEvent: envelope.EventType,
		Attribution:   parseAttribution(envelope.Data),
		Raw:           envelope.Data,
	}
	if ts, err := time.Parse(time.RFC3339, envelope.OccurredAt); err == nil {
		event.OccurredAt = ts
	}

	if status, ok := envelope.Data["status"].(string); ok {
		event.Status = status
	}
	if customerRef, ok := envelope.Data["customer_id"].(string); ok {
		event.CustomerRef = customerRef
	}

	if strings.HasPrefix(envelope.EventType, "subscription.") {
		if subRef, ok := envelope.Data["id"].(string); ok {
			event.SubscriptionRef = subRef
		}
		event.PriceRef = firstPriceRef(envelope.Data)
		event.PeriodStart, event.PeriodEnd = parseBillingPeriod(envelope.Data)
	}

	if strings.HasPrefix(envelope.EventType, "transaction.") {
		// Transactions reference their subscription when one exists; the
		// transaction id itself is only a fallback correlation key.
		if txnRef, ok := envelope.Data["id"].(string); ok {
			event.SubscriptionRef = txnRef
		}
		if subRef, ok := envelope.Data["subscription_id"].(string); ok {
			event.SubscriptionRef = subRef
		}
		event.PriceRef = firstPriceRef(envelope.Data)
	}

	return event, nil
}

// CreateCheckoutLink creates a hosted checkout session in Paddle with the
// tenant attribution attached as custom data.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PriceRef == "" {
		return nil, errors.New("price ref is required")
	}
	if req.TenantID == uuid.Nil {
		return nil, errors.New("tenant id is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	txnReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			metaTenantID: req.TenantID.String(),
			metaPlanType: string(req.PlanType),
		},
	}
	if req.Email != "" {
		txnReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txnReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	txn, err := p.client.TransactionsClient.CreateTransaction(ctx, txnReq)
	if err != nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}

	if txn.Checkout == nil || txn.Checkout.URL == nil || *txn.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *txn.Checkout.URL,
		SessionID: txn.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour), // Paddle checkout links expire in 24 hours
	}, nil
}

// GetCheckoutSession fetches the transaction the client was redirected
// from, for the pull-based verifier.
func (p *PaddleProvider) GetCheckoutSession(ctx context.Context, ref string) (*CheckoutSession, error) {
	txn, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: ref,
	})
	if err != nil {
		return nil, errors.Join(ErrSessionNotFound, err)
	}

	session := &CheckoutSession{
		Ref:         txn.ID,
		Completed:   isSettledTransactionStatus(string(txn.Status)),
		Attribution: parseCustomData(txn.CustomData),
	}
	if txn.SubscriptionID != nil {
		session.SubscriptionRef = *txn.SubscriptionID
	}
	if txn.CustomerID != nil {
		session.CustomerRef = *txn.CustomerID
	}
	for _, item := range txn.Items {
		if item.Price.ID != "" {
			session.PriceRef = item.Price.ID
			break
		}
	}

	return session, nil
}

// FindCustomerByEmail looks up the Paddle customer ref for an account email.
func (p *PaddleProvider) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	res, err := p.client.CustomersClient.ListCustomers(ctx, &paddle.ListCustomersRequest{
		Email: []string{email},
	})
	if err != nil {
		return "", errors.Join(ErrProviderFailure, err)
	}

	var customerRef string
	if err := res.Iter(ctx, func(c *paddle.Customer) (bool, error) {
		customerRef = c.ID
		return false, nil
	}); err != nil {
		return "", errors.Join(ErrProviderFailure, err)
	}
	if customerRef == "" {
		return "", ErrCustomerNotFound
	}
	return customerRef, nil
}

// LatestSubscription returns the newest subscription object for a customer.
func (p *PaddleProvider) LatestSubscription(ctx context.Context, customerRef string) (*ProviderSubscription, error) {
	res, err := p.client.SubscriptionsClient.ListSubscriptions(ctx, &paddle.ListSubscriptionsRequest{
		CustomerID: []string{customerRef},
	})
	if err != nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}

	var latest *ProviderSubscription
	if err := res.Iter(ctx, func(s *paddle.Subscription) (bool, error) {
		// Paddle lists newest first; the first entry is the one we want.
		latest = &ProviderSubscription{
			Ref:         s.ID,
			CustomerRef: s.CustomerID,
			Status:      string(s.Status),
			Attribution: parseCustomData(s.CustomData),
		}
		for _, item := range s.Items {
			if item.Price.ID != "" {
				latest.PriceRef = item.Price.ID
				break
			}
		}
		return false, nil
	}); err != nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}
	if latest == nil {
		return nil, ErrNoSubscription
	}
	return latest, nil
}

// mapPaddleEventKind maps Paddle event types to normalized kinds. Unmapped
// events come back as KindUnknown, which the ingestion layer accepts and
// drops to stay forward-compatible with processor additions.
func mapPaddleEventKind(providerEvent string) Kind {
	switch providerEvent {
	case "transaction.completed", "checkout.completed", "subscription.created":
		return KindCheckoutCompleted
	case "subscription.updated":
		return KindSubscriptionUpdated
	case "subscription.canceled", "subscription.deleted":
		return KindSubscriptionDeleted
	case "transaction.payment_succeeded", "invoice.payment_succeeded", "subscription.payment_succeeded":
		return KindPaymentSucceeded
	case "transaction.payment_failed", "invoice.payment_failed", "subscription.payment_failed":
		return KindPaymentFailed
	default:
		return KindUnknown
	}
}

func isSettledTransactionStatus(status string) bool {
	switch status {
	case "completed", "paid":
		return true
	}
	return false
}

// firstPriceRef extracts the price id of the first line item in a raw
// webhook data object. Transactions carry price_id directly on the item,
// subscriptions nest a price object.
func firstPriceRef(data map[string]any) string {
	items, ok := data["items"].([]any)
	if !ok {
		return ""
	}
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := item["price_id"].(string); ok && id != "" {
			return id
		}
		if price, ok := item["price"].(map[string]any); ok {
			if id, ok := price["id"].(string); ok && id != "" {
				return id
			}
		}
	}
	return ""
}

// parseBillingPeriod reads current_billing_period bounds when the event
// carries them.
func parseBillingPeriod(data map[string]any) (*time.Time, *time.Time) {
	period, ok := data["current_billing_period"].(map[string]any)
	if !ok {
		return nil, nil
	}
	parse := func(key string) *time.Time {
		raw, ok := period[key].(string)
		if !ok {
			return nil
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil
		}
		return &ts
	}
	return parse("starts_at"), parse("ends_at")
}

// parseAttribution pulls the tenant attribution out of a raw webhook data
// object's custom_data.
func parseAttribution(data map[string]any) Attribution {
	customData, ok := data["custom_data"].(map[string]any)
	if !ok {
		return Attribution{}
	}

	var attr Attribution
	if raw, ok := customData[metaTenantID].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			attr.TenantID = id
		}
	}
	if raw, ok := customData[metaPlanType].(string); ok {
		attr.PlanType = plan.Type(raw)
	}
	return attr
}

// parseCustomData is parseAttribution for SDK-typed custom data.
func parseCustomData(customData paddle.CustomData) Attribution {
	var attr Attribution
	if raw, ok := customData[metaTenantID].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			attr.TenantID = id
		}
	}
	if raw, ok := customData[metaPlanType].(string); ok {
		attr.PlanType = plan.Type(raw)
	}
	return attr
}
