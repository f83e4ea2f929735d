// Package email renders and sends the transactional emails of the
// application workflow over SMTP.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/service/metrics"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	applicationTemplate = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/application.html"))
	welcomeTemplate     = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/welcome.html"))
)

const (
	green  = "#10b981"
	blue   = "#3b82f6"
	amber  = "#f59e0b"
	pink   = "#ec4899"
	purple = "#a855f7"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Settings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer sends HTML email. With no SMTP host configured every send is a
// silent no-op.
type Mailer struct {
	dialer Dialer
	from   string
	logger *zap.Logger
}

func NewMailer(settings Settings, logger *zap.Logger) *Mailer {
	if settings.Host == "" {
		logger.Info("SMTP not configured, emails will not be sent")
		return &Mailer{logger: logger}
	}
	return NewMailerWithDialer(gomail.NewDialer(settings.Host, settings.Port, settings.User, settings.Password), settings.From, logger)
}

func NewMailerWithDialer(dialer Dialer, from string, logger *zap.Logger) *Mailer {
	return &Mailer{dialer: dialer, from: from, logger: logger}
}

// Enabled reports whether an SMTP server is configured.
func (m *Mailer) Enabled() bool {
	return m.dialer != nil
}

type page struct {
	Heading string
	Name    string
	Closing string
	From    string
	To      string
	Accent  string

	Intro      string
	Status     string
	StartDate  string
	Commitment *models.Commitment
}

func (m *Mailer) send(to, subject string, tmpl *template.Template, data page) error {
	if !m.Enabled() {
		return nil
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return fmt.Errorf("error rendering %q email: %w", subject, err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "CommonThread")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	err := m.dialer.DialAndSend(msg)
	metrics.Delivered("email", err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Debug("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func applicationPage(c *models.Commitment) page {
	return page{
		Name:       c.VolunteerName,
		Closing:    "Thank you for making a difference in your community!",
		From:       green,
		To:         blue,
		Status:     strings.ToUpper(c.Status),
		StartDate:  c.StartDate.Format("January 2, 2006"),
		Commitment: c,
	}
}

// SendApplicationStatus confirms receipt of a new application, worded by
// whether it was confirmed on the spot.
func (m *Mailer) SendApplicationStatus(c *models.Commitment) error {
	data := applicationPage(c)
	var subject string
	if c.Status == models.CommitmentConfirmed {
		subject = fmt.Sprintf("Application Confirmed: %s at %s", c.OpportunityTitle, c.BusinessName)
		data.Heading = "Application Confirmed!"
		data.Intro = "Your volunteer application has been automatically confirmed! You met all the requirements."
		data.Accent = green
	} else {
		subject = fmt.Sprintf("Application Submitted: %s at %s", c.OpportunityTitle, c.BusinessName)
		data.Heading = "Application Submitted!"
		data.Intro = "Your application has been submitted and is pending review."
		data.Accent = amber
	}
	return m.send(c.VolunteerEmail, subject, applicationTemplate, data)
}

// SendApplicationApproved tells the volunteer the owner approved a pending application.
func (m *Mailer) SendApplicationApproved(c *models.Commitment) error {
	data := applicationPage(c)
	data.Heading = "Application Approved!"
	data.Intro = fmt.Sprintf("Great news! %s has approved your application.", c.BusinessName)
	data.Accent = green
	return m.send(c.VolunteerEmail, fmt.Sprintf("Application Approved: %s at %s", c.OpportunityTitle, c.BusinessName), applicationTemplate, data)
}

// SendReminder goes out the day before a confirmed commitment starts.
func (m *Mailer) SendReminder(c *models.Commitment) error {
	data := applicationPage(c)
	data.Heading = "See You Tomorrow!"
	data.Intro = fmt.Sprintf("This is a reminder that your volunteer shift with %s starts tomorrow.", c.BusinessName)
	data.Closing = "Thank you for showing up for your community!"
	data.Accent = blue
	return m.send(c.VolunteerEmail, fmt.Sprintf("Reminder: %s starts tomorrow", c.OpportunityTitle), applicationTemplate, data)
}

// SendWelcome is sent once, when a volunteer first completes their profile.
func (m *Mailer) SendWelcome(u *models.User) error {
	return m.send(u.Email, "Welcome to CommonThread!", welcomeTemplate, page{
		Heading: "Welcome to CommonThread!",
		Name:    u.FullName,
		Closing: "Thank you for joining us in strengthening local communities!",
		From:    pink,
		To:      purple,
		Accent:  pink,
	})
}
