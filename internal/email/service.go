// Package email sends letter status notifications over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"

	"letterflow/internal/display"
	"letterflow/internal/lifecycle"
)

// ErrNotConfigured is returned when no SMTP host or sender is set.
var ErrNotConfigured = errors.New("email not configured")

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppName  string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	if config.AppName == "" {
		config.AppName = "Letterflow"
	}
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}
	boundary := "boundary-letterflow"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// TransitionData is rendered into the status notification.
type TransitionData struct {
	AppName     string
	AuthorName  string
	LetterTitle string
	StatusLabel string
	Reason      string
	LetterURL   string
}

// SendTransitionNotice tells a letter's author that its status changed.
func (s *Service) SendTransitionNotice(to, authorName string, letter lifecycle.Letter, letterURL string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("send transition notice: empty recipient")
	}
	data := TransitionData{
		AppName:     s.config.AppName,
		AuthorName:  authorName,
		LetterTitle: letter.Title,
		StatusLabel: display.StatusLabel(letter.Status),
		Reason:      letter.ReasonForRejection,
		LetterURL:   letterURL,
	}
	html, err := renderTemplate(transitionEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render transition template: %w", err)
	}
	subject := fmt.Sprintf("%s: %s", data.StatusLabel, letter.Title)
	text := fmt.Sprintf("%s\n%s\n%s", letter.Title, data.StatusLabel, letterURL)
	if data.Reason != "" {
		text += "\n" + data.Reason
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const transitionEmailTemplate = `<!DOCTYPE html>
<html dir="rtl" lang="ar">
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}}</title>
    <style>
        body { font-family: Tahoma, Arial, sans-serif; line-height: 1.7; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0b5d3b; padding-bottom: 10px; margin-bottom: 20px; }
        .status { display: inline-block; padding: 6px 14px; background: #0b5d3b; color: white; border-radius: 4px; }
        .reason { background: #fdecea; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .link { word-break: break-all; color: #0b5d3b; }
    </style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <p>{{.AuthorName}}</p>
    <p><strong>{{.LetterTitle}}</strong></p>
    <p><span class="status">{{.StatusLabel}}</span></p>
    {{if .Reason}}<div class="reason">{{.Reason}}</div>{{end}}
    {{if .LetterURL}}<p class="link"><a href="{{.LetterURL}}">{{.LetterURL}}</a></p>{{end}}
</body>
</html>`
