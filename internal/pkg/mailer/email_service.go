// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendPaymentFailed(toEmail, planName string, amount int64, currency string) error
	SendSubscriptionCanceled(toEmail, planName string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	frontendURL string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	frontendURL := os.Getenv("FRONTEND_URL")

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		frontendURL: frontendURL,
	}
}

// SendPaymentFailed is the dunning email: the processor reported a failed
// charge and the user should update their payment method.
func (s *emailService) SendPaymentFailed(toEmail, planName string, amount int64, currency string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Payment failed for your subscription")

	billingLink := fmt.Sprintf("%s/billing", s.frontendURL)
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>We couldn't process your payment</h2>
			<p>Your payment of %s %.2f for the <b>%s</b> plan was declined.</p>
			<p>Please update your payment method to keep your subscription active:</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Update payment method</a>
			<p>We'll keep retrying the charge per your card issuer's schedule.</p>
		</div>
	`, currency, float64(amount)/100, planName, billingLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send payment-failed mail to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Payment-failed mail sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendSubscriptionCanceled(toEmail, planName string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your subscription has been canceled")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Subscription canceled</h2>
			<p>Your <b>%s</b> subscription has been canceled.</p>
			<p>You can resubscribe at any time from your billing page.</p>
		</div>
	`, planName)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send cancellation mail to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Cancellation mail sent to %s\n", toEmail)
	return nil
}
