package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirimi-id/kirimi-go/pkg/kirimi"
)

const (
	opWelcome     = "welcome"
	opOrder       = "order_confirmation"
	opInvoice     = "invoice"
	opAppointment = "appointment_reminder"
	opCustom      = "custom"
)

// NotificationService sends templated WhatsApp notifications from a fixed device.
type NotificationService struct {
	base
	client MessageSender
}

// NewNotificationService creates a NotificationService sending from deviceID.
func NewNotificationService(client MessageSender, deviceID string, opts ...Option) *NotificationService {
	return &NotificationService{
		base:   newBase(deviceID, "NotificationService", opts),
		client: client,
	}
}

// NewNotificationServiceWithCredentials builds its own client from dashboard credentials.
func NewNotificationServiceWithCredentials(userCode, secret, deviceID string, clientOpts []kirimi.Option, opts ...Option) *NotificationService {
	return NewNotificationService(kirimi.NewClient(userCode, secret, clientOpts...), deviceID, opts...)
}

// Client returns the underlying API client.
func (s *NotificationService) Client() MessageSender {
	return s.client
}

// DeviceID returns the sending device.
func (s *NotificationService) DeviceID() string {
	return s.deviceID
}

// SendWelcomeMessage greets a newly registered user.
func (s *NotificationService) SendWelcomeMessage(ctx context.Context, phone, name string) Result {
	msg := WelcomeMessage(name)
	return s.send(ctx, opWelcome, phone, msg, nil,
		"Welcome message sent successfully", "Failed to send welcome message")
}

// SendOrderConfirmation lists the ordered items under the order number.
func (s *NotificationService) SendOrderConfirmation(ctx context.Context, phone, orderID string, items []string) Result {
	msg := OrderConfirmationMessage(orderID, items)
	return s.send(ctx, opOrder, phone, msg, nil,
		"Order confirmation sent successfully", "Failed to send order confirmation")
}

// SendInvoiceWithDocument sends the invoice notice with the document attached.
func (s *NotificationService) SendInvoiceWithDocument(ctx context.Context, phone, invoiceNumber, documentURL string) Result {
	msg := InvoiceMessage(invoiceNumber)
	return s.send(ctx, opInvoice, phone, msg, []kirimi.MessageOption{kirimi.WithMediaURL(documentURL)},
		"Invoice sent successfully", "Failed to send invoice")
}

// SendAppointmentReminder reminds the recipient of an upcoming appointment.
func (s *NotificationService) SendAppointmentReminder(ctx context.Context, phone, date, time, location string) Result {
	msg := AppointmentReminderMessage(date, time, location)
	return s.send(ctx, opAppointment, phone, msg, nil,
		"Appointment reminder sent successfully", "Failed to send appointment reminder")
}

// SendCustomNotification sends message unchanged, with optional media.
func (s *NotificationService) SendCustomNotification(ctx context.Context, phone, message string, opts ...kirimi.MessageOption) Result {
	return s.send(ctx, opCustom, phone, message, opts,
		"Notification sent successfully", "Failed to send notification")
}

func (s *NotificationService) send(ctx context.Context, operation, phone, message string, opts []kirimi.MessageOption, okMsg, failMsg string) Result {
	if err := s.admit(phone); err != nil {
		return s.failed(ctx, operation, phone, err, failMsg)
	}

	data, err := s.client.SendMessage(ctx, s.deviceID, phone, message, opts...)
	if err != nil {
		return s.failed(ctx, operation, phone, err, failMsg)
	}
	return s.succeeded(ctx, operation, phone, data, okMsg)
}

// WelcomeMessage renders the welcome template.
func WelcomeMessage(name string) string {
	return fmt.Sprintf("Welcome %s! 🎉\n\nThank you for joining our service. We're excited to have you!", name)
}

// OrderConfirmationMessage renders the order template, one bullet per item.
func OrderConfirmationMessage(orderID string, items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return fmt.Sprintf("Order Confirmation #%s ✅\n\nItems:\n%s\n\nThank you for your order!",
		orderID, strings.Join(lines, "\n"))
}

// InvoiceMessage renders the invoice template.
func InvoiceMessage(invoiceNumber string) string {
	return fmt.Sprintf("Invoice #%s 📄\n\nPlease find your invoice document attached.", invoiceNumber)
}

// AppointmentReminderMessage renders the appointment reminder template.
func AppointmentReminderMessage(date, time, location string) string {
	var b strings.Builder
	b.WriteString("🗓️ Appointment Reminder\n\n")
	fmt.Fprintf(&b, "Date: %s\n", date)
	fmt.Fprintf(&b, "Time: %s\n", time)
	fmt.Fprintf(&b, "Location: %s\n\n", location)
	b.WriteString("Please arrive 10 minutes early. Thank you!")
	return b.String()
}
