// Package notify sends the app's emails.
//
// Callers only see the Notifier interface: "send this kind of message to
// this address with this data". Rendering is shared; delivery is either real
// SMTP (SMTPNotifier) or a log line (LogNotifier) for local development.
//
// Sends are fire-and-forget from the domain's point of view. A failed send
// is returned to the caller, which logs it and moves on; nothing is retried.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"
)

// Kind selects the email template.
type Kind string

const (
	KindMagicLink       Kind = "magic-link"
	KindLoginCode       Kind = "login-code"
	KindPairingAssigned Kind = "pairing-assigned"
	KindRevealReminder  Kind = "reveal-reminder"
)

// Data is everything a template may reference. Each kind uses a subset.
type Data struct {
	Name         string
	LoginURL     string    // magic-link
	Code         string    // login-code
	ReceiverName string    // pairing-assigned
	RevealDate   time.Time // pairing-assigned
	AppURL       string
}

// Notifier delivers one email.
type Notifier interface {
	Notify(ctx context.Context, to string, kind Kind, data Data) error
}

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Kind]string{
	KindMagicLink:       "Secret Santa - Login Link",
	KindLoginCode:       "Secret Santa - Your Login Code",
	KindPairingAssigned: "Your Secret Santa Assignment is Ready!",
	KindRevealReminder:  "Secret Santa Reveal Day is Here!",
}

// Renderer turns a Kind and Data into a subject and an HTML body.
//
// Each kind gets its own template set: base.html defines the page with
// {{template "content" .}} and {{template "heading" .}} placeholders, and the
// kind's file fills them. Sets are parsed once at start-up.
type Renderer struct {
	sets map[Kind]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{sets: make(map[Kind]*template.Template, len(subjects))}
	for kind := range subjects {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("notify: parsing %s template: %w", kind, err)
		}
		r.sets[kind] = t
	}
	return r, nil
}

// Render returns the subject line and HTML body for kind.
func (r *Renderer) Render(kind Kind, data Data) (subject, body string, err error) {
	t, ok := r.sets[kind]
	if !ok {
		return "", "", fmt.Errorf("notify: unknown message kind %q", kind)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return "", "", fmt.Errorf("notify: rendering %s: %w", kind, err)
	}
	return subjects[kind], buf.String(), nil
}

// LogNotifier renders messages but only logs them. Used when SMTP is not
// configured, so local development works without a mail server.
type LogNotifier struct {
	renderer *Renderer
	logger   *slog.Logger
}

func NewLogNotifier(renderer *Renderer, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{renderer: renderer, logger: logger}
}

// Notify renders the message (so template errors still surface) and logs it.
// Login links and codes are logged at Debug so they stay out of normal logs.
func (n *LogNotifier) Notify(_ context.Context, to string, kind Kind, data Data) error {
	subject, _, err := n.renderer.Render(kind, data)
	if err != nil {
		return err
	}
	n.logger.Info("email not sent (SMTP disabled)",
		slog.String("to", to),
		slog.String("kind", string(kind)),
		slog.String("subject", subject),
	)
	n.logger.Debug("email data",
		slog.String("to", to),
		slog.String("login_url", data.LoginURL),
		slog.String("code", data.Code),
	)
	return nil
}
