package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// EmailNotifier sends notifications over SMTP using HTML templates.
type EmailNotifier struct {
	dialer    *gomail.Dialer
	from      string
	templates *template.Template
	logger    *zap.Logger
}

// NewEmailNotifier creates an EmailNotifier for the given SMTP server.
func NewEmailNotifier(host string, port int, username, password, from string, logger *zap.Logger) (*EmailNotifier, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &EmailNotifier{
		dialer:    gomail.NewDialer(host, port, username, password),
		from:      from,
		templates: templates,
		logger:    logger,
	}, nil
}

// SendBookingConfirmation emails the passenger their ticket details.
func (n *EmailNotifier) SendBookingConfirmation(ctx context.Context, c BookingConfirmation) error {
	data := map[string]interface{}{
		"PassengerName": c.PassengerName,
		"BookingCode":   c.BookingCode,
		"BusNumber":     c.BusNumber,
		"Origin":        c.Origin,
		"Destination":   c.Destination,
		"DepartureAt":   c.DepartureAt.Format("Mon, 2 Jan 2006 15:04"),
		"ArrivalAt":     c.ArrivalAt.Format("Mon, 2 Jan 2006 15:04"),
		"Seats":         joinSeats(c.SeatNumbers),
		"TotalAmount":   c.TotalAmount,
		"BookedAt":      c.BookedAt.Format("2 Jan 2006 15:04"),
	}
	subject := fmt.Sprintf("Booking Confirmed - %s", c.BookingCode)
	return n.send(ctx, c.PassengerEmail, subject, "booking_confirmation.html", data)
}

// SendBookingCancellation emails the passenger that their booking was
// cancelled and the seats released.
func (n *EmailNotifier) SendBookingCancellation(ctx context.Context, c BookingCancellation) error {
	data := map[string]interface{}{
		"PassengerName": c.PassengerName,
		"BookingCode":   c.BookingCode,
		"BusNumber":     c.BusNumber,
		"Seats":         joinSeats(c.SeatNumbers),
		"CancelledAt":   c.CancelledAt.Format("2 Jan 2006 15:04"),
	}
	subject := fmt.Sprintf("Booking Cancelled - %s", c.BookingCode)
	return n.send(ctx, c.PassengerEmail, subject, "booking_cancellation.html", data)
}

// SendLoginCode emails a one-time login code.
func (n *EmailNotifier) SendLoginCode(ctx context.Context, email, code string, expiresIn time.Duration) error {
	data := map[string]interface{}{
		"Code":    code,
		"Minutes": int(expiresIn.Minutes()),
	}
	return n.send(ctx, email, "Your BusBook login code", "login_code.html", data)
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, templateName string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := n.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("failed to execute email template %s: %w", templateName, err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := n.dialer.DialAndSend(msg); err != nil {
		n.logger.Error("failed to send email",
			zap.String("to", to),
			zap.String("template", templateName),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("email sent",
		zap.String("to", to),
		zap.String("template", templateName),
	)
	return nil
}

func joinSeats(seats []int) string {
	parts := make([]string, len(seats))
	for i, s := range seats {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ", ")
}
