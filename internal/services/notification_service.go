// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
)

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// SendReceipt emails the customer a receipt after a payment completes.
// Failures are logged and swallowed; a lost email never fails a payment.
func (s *NotificationService) SendReceipt(sale *models.Sale, txn *models.Transaction) {
	if txn.Customer.Email == "" {
		return
	}

	tmpl := s.getEmailTemplate("receipt")
	data := map[string]interface{}{
		"CustomerName": txn.Customer.Name,
		"Items":        sale.Items,
		"Subtotal":     fmt.Sprintf("%.2f", sale.Subtotal),
		"Tax":          fmt.Sprintf("%.2f", sale.TaxAmount),
		"Discount":     fmt.Sprintf("%.2f", sale.Discount),
		"Total":        fmt.Sprintf("%.2f", sale.Total),
		"Currency":     sale.Currency,
		"PaidVia":      string(txn.Gateway),
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render receipt email")
		return
	}

	if err := s.sendEmail(txn.Customer.Email, tmpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("sale_id", sale.ID).Error("Failed to send receipt email")
	}
}

// SendRefundNotice emails the customer when a refund is recorded.
func (s *NotificationService) SendRefundNotice(original *models.Transaction, refund *models.Transaction) {
	if original.Customer.Email == "" {
		return
	}

	tmpl := s.getEmailTemplate("refund")
	data := map[string]interface{}{
		"CustomerName": original.Customer.Name,
		"Amount":       fmt.Sprintf("%.2f", refund.Amount),
		"Currency":     refund.Currency,
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render refund email")
		return
	}

	if err := s.sendEmail(original.Customer.Email, tmpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("transaction_id", original.ID).Error("Failed to send refund email")
	}
}

// SendRepairReady emails the customer that their device is ready for pickup.
func (s *NotificationService) SendRepairReady(ticket *models.RepairTicket) {
	if ticket.Customer.Email == "" {
		return
	}

	tmpl := s.getEmailTemplate("repair_ready")
	data := map[string]interface{}{
		"CustomerName": ticket.Customer.FullName(),
		"TicketNumber": ticket.TicketNumber,
		"DeviceType":   ticket.DeviceType,
		"DeviceModel":  ticket.DeviceModel,
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render repair email")
		return
	}

	if err := s.sendEmail(ticket.Customer.Email, tmpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("ticket", ticket.TicketNumber).Error("Failed to send repair email")
	}
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email not configured, skipping send")
		return nil
	}

	// Setup authentication
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	// Compose message
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	// Send email
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	// In a real implementation, these would be loaded from files or database
	templates := map[string]EmailTemplate{
		"receipt": {
			Subject: "Your receipt",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Thank you, {{.CustomerName}}!</h2>
	<table>
	{{range .Items}}
		<tr><td>{{.ProductName}} x{{.Quantity}}</td><td>{{printf "%.2f" .LineTotal}}</td></tr>
	{{end}}
	</table>
	<p>Subtotal: {{.Subtotal}} {{.Currency}}<br>
	Discount: {{.Discount}} {{.Currency}}<br>
	Tax: {{.Tax}} {{.Currency}}<br>
	<strong>Total: {{.Total}} {{.Currency}}</strong></p>
	<p>Paid via {{.PaidVia}}.</p>
</body>
</html>`,
		},
		"refund": {
			Subject: "Your refund has been processed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Hello {{.CustomerName}},</h2>
	<p>A refund of {{.Amount}} {{.Currency}} has been issued to your original payment method.</p>
	<p>Depending on your bank it may take a few business days to appear.</p>
</body>
</html>`,
		},
		"repair_ready": {
			Subject: "Your repair is ready for pickup",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Hello {{.CustomerName}},</h2>
	<p>Your {{.DeviceType}} {{.DeviceModel}} (ticket {{.TicketNumber}}) is ready for pickup.</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}
	return EmailTemplate{Subject: "Notification", Body: "<html><body><p>{{.}}</p></body></html>"}
}
