package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers email through an SMTP server using go-mail.
//
// A new connection is dialled per message. Sends are rare (a login, one
// round after generation, one reminder round) so pooling isn't worth it.
type SMTPNotifier struct {
	cfg      SMTPConfig
	renderer *Renderer
	logger   *slog.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, renderer *Renderer, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, renderer: renderer, logger: logger}
}

// Notify renders and sends one message.
func (n *SMTPNotifier) Notify(ctx context.Context, to string, kind Kind, data Data) error {
	msg, err := n.buildMessage(to, kind, data)
	if err != nil {
		return err
	}

	client, err := n.newClient()
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: sending %s to %s: %w", kind, to, err)
	}

	n.logger.Info("email sent",
		slog.String("to", to),
		slog.String("kind", string(kind)),
	)
	return nil
}

func (n *SMTPNotifier) buildMessage(to string, kind Kind, data Data) (*mail.Msg, error) {
	subject, body, err := n.renderer.Render(kind, data)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("notify: invalid sender %q: %w", n.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("notify: invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

// newClient builds a go-mail client. STARTTLS is used when the server offers
// it; authentication is skipped when no username is configured (local relays).
func (n *SMTPNotifier) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithPort(n.cfg.Port),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: creating SMTP client: %w", err)
	}
	return client, nil
}
