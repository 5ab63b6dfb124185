package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Notification tags used for Postmark analytics and dev sender filenames.
const (
	TagTrialReminder        = "trial-reminder"
	TagPaymentFailed        = "payment-failed"
	TagPlanActivated        = "plan-activated"
	TagRevertedToTrial      = "reverted-to-trial"
	TagCancellationAsked    = "cancellation-requested"
	TagPlanRejected         = "plan-rejected"
	TagCancellationDeclined = "cancellation-declined"
)

var baseTmpl = template.Must(template.New("base").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="font-size: 20px;">{{.Heading}}</h2>
  <p>{{.Body}}</p>
  {{if .ActionURL}}<p><a href="{{.ActionURL}}" style="display: inline-block; padding: 10px 20px; background: #2563eb; color: #fff; text-decoration: none; border-radius: 6px;">{{.ActionLabel}}</a></p>{{end}}
  <p style="color: #6b7280; font-size: 13px;">If you have questions, just reply to this email.</p>
</body>
</html>`))

type templateData struct {
	Heading     string
	Body        template.HTML
	ActionURL   string
	ActionLabel string
}

func render(data templateData) string {
	var buf bytes.Buffer
	// The base template only fails on unrenderable data, which these
	// static payloads never are.
	_ = baseTmpl.Execute(&buf, data)
	return buf.String()
}

// TrialReminderMessage builds the reminder sent as a trial approaches its end.
func TrialReminderMessage(sendTo, businessName string, daysLeft int, upgradeURL string) Message {
	day := "days"
	if daysLeft == 1 {
		day = "day"
	}
	return Message{
		SendTo:  sendTo,
		Subject: fmt.Sprintf("Your trial ends in %d %s", daysLeft, day),
		Tag:     TagTrialReminder,
		BodyHTML: render(templateData{
			Heading: fmt.Sprintf("%d %s left in your trial", daysLeft, day),
			Body: template.HTML(fmt.Sprintf(
				"The trial for <strong>%s</strong> ends soon. Pick a plan to keep your customers, workers, and products without interruption.",
				template.HTMLEscapeString(businessName))),
			ActionURL:   upgradeURL,
			ActionLabel: "Choose a plan",
		}),
	}
}

// PaymentFailedMessage builds the grace-period notice after a failed charge.
func PaymentFailedMessage(sendTo, businessName, billingURL string) Message {
	return Message{
		SendTo:  sendTo,
		Subject: "Payment failed for your subscription",
		Tag:     TagPaymentFailed,
		BodyHTML: render(templateData{
			Heading: "We couldn't process your payment",
			Body: template.HTML(fmt.Sprintf(
				"The latest charge for <strong>%s</strong> failed. Your plan features stay available while we retry, but please update your payment method.",
				template.HTMLEscapeString(businessName))),
			ActionURL:   billingURL,
			ActionLabel: "Update payment method",
		}),
	}
}

// PlanActivatedMessage builds the confirmation sent when a paid plan becomes active.
func PlanActivatedMessage(sendTo, businessName, planName string) Message {
	return Message{
		SendTo:  sendTo,
		Subject: fmt.Sprintf("Your %s plan is active", planName),
		Tag:     TagPlanActivated,
		BodyHTML: render(templateData{
			Heading: fmt.Sprintf("Welcome to %s", template.HTMLEscapeString(planName)),
			Body: template.HTML(fmt.Sprintf(
				"The <strong>%s</strong> plan is now active for <strong>%s</strong>. All plan features are unlocked.",
				template.HTMLEscapeString(planName), template.HTMLEscapeString(businessName))),
		}),
	}
}

// RevertedToTrialMessage builds the notice sent after an approved
// cancellation moves the account back to the trial tier.
func RevertedToTrialMessage(sendTo, businessName string, trialDays int) Message {
	return Message{
		SendTo:  sendTo,
		Subject: "Your subscription has been canceled",
		Tag:     TagRevertedToTrial,
		BodyHTML: render(templateData{
			Heading: "Subscription canceled",
			Body: template.HTML(fmt.Sprintf(
				"The paid plan for <strong>%s</strong> has been canceled. Your account is back on the trial tier for the next %d days.",
				template.HTMLEscapeString(businessName), trialDays)),
		}),
	}
}

// PlanRejectedMessage builds the notice sent when a pending purchase is
// rejected by the operator.
func PlanRejectedMessage(sendTo, businessName, supportEmail string) Message {
	return Message{
		SendTo:  sendTo,
		Subject: "Your plan purchase was not approved",
		Tag:     TagPlanRejected,
		BodyHTML: render(templateData{
			Heading: "Purchase not approved",
			Body: template.HTML(fmt.Sprintf(
				"The recent plan purchase for <strong>%s</strong> was not approved and has been canceled. Any charge will be refunded. Contact %s for details.",
				template.HTMLEscapeString(businessName), template.HTMLEscapeString(supportEmail))),
		}),
	}
}

// CancellationDeclinedMessage builds the notice sent when a cancellation
// request is declined and the plan stays active.
func CancellationDeclinedMessage(sendTo, businessName string) Message {
	return Message{
		SendTo:  sendTo,
		Subject: "Your cancellation request was declined",
		Tag:     TagCancellationDeclined,
		BodyHTML: render(templateData{
			Heading: "Cancellation request declined",
			Body: template.HTML(fmt.Sprintf(
				"The cancellation request for <strong>%s</strong> was declined. Your plan remains active; reply to this email if you believe this is a mistake.",
				template.HTMLEscapeString(businessName))),
		}),
	}
}

// CancellationRequestedMessage builds the acknowledgement sent when a
// cancellation request is recorded and queued for review.
func CancellationRequestedMessage(sendTo, businessName string) Message {
	return Message{
		SendTo:  sendTo,
		Subject: "We received your cancellation request",
		Tag:     TagCancellationAsked,
		BodyHTML: render(templateData{
			Heading: "Cancellation request received",
			Body: template.HTML(fmt.Sprintf(
				"Your request to cancel the plan for <strong>%s</strong> is being reviewed. Your plan stays active until the request is approved.",
				template.HTMLEscapeString(businessName))),
		}),
	}
}
