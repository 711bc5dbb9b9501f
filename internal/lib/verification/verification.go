package verification

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	sl "messenger_auth/internal/lib/logger"
	"messenger_auth/internal/models"

	"github.com/google/uuid"
)

const sendTimeout = 10 * time.Second

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// Notifier hands confirmation and reset links to the email queue without
// blocking the caller. Failures are logged and never reach the caller.
type Notifier struct {
	log     *slog.Logger
	pub     Publisher
	baseURL string
	wg      sync.WaitGroup
}

func New(log *slog.Logger, pub Publisher, baseURL string) *Notifier {
	return &Notifier{
		log:     log,
		pub:     pub,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func ConfirmationLink(baseURL, token string) string {
	return fmt.Sprintf("%s/auth/confirmed_email/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(token))
}

func ResetLink(baseURL, token string) string {
	return fmt.Sprintf("%s/auth/password_reset_confirm/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(token))
}

func (n *Notifier) SendConfirmation(email, username, token string) {
	n.dispatch(models.Message{
		Email:    email,
		Username: username,
		Link:     ConfirmationLink(n.baseURL, token),
		Purpose:  models.PurposeEmailConfirm,
	})
}

func (n *Notifier) SendPasswordReset(email, token string) {
	username, _, _ := strings.Cut(email, "@")

	n.dispatch(models.Message{
		Email:    email,
		Username: username,
		Link:     ResetLink(n.baseURL, token),
		Purpose:  models.PurposePasswordReset,
	})
}

// Wait blocks until every in-flight dispatch has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(msg models.Message) {
	const op = "verification.dispatch"

	msg.ID = uuid.NewString()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		log := n.log.With(
			slog.String("op", op),
			slog.String("purpose", msg.Purpose),
			slog.String("message_id", msg.ID),
		)

		if err := n.pub.SendMessage(ctx, msg); err != nil {
			log.Error("failed to send email message", sl.Err(err))
			return
		}

		log.Debug("email message queued")
	}()
}
