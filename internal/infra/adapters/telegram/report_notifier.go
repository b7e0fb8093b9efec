package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"salon-billing/internal/config"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
)

var _ adapter.ReportNotifier = (*ReportNotifier)(nil)

// maxListedFailures caps the failure lines in one message.
const maxListedFailures = 10

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReportNotifier posts batch run summaries to the configured admin chats.
type ReportNotifier struct {
	bot      sender
	adminIDs []int64
	log      *zerolog.Logger
}

func NewReportNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*ReportNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newReportNotifier(bot, cfg.AdminChatIDs, logger), nil
}

func newReportNotifier(bot sender, adminIDs []int64, logger *zerolog.Logger) *ReportNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "telegram_notifier").Logger()
	return &ReportNotifier{bot: bot, adminIDs: adminIDs, log: &l}
}

func (n *ReportNotifier) NotifyDiscountReport(ctx context.Context, report *model.DiscountReport) error {
	if report == nil {
		return nil
	}
	text := FormatReport(report)
	var errs []error
	for _, id := range n.adminIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
			n.log.Error().Err(err).Int64("chat_id", id).Str("run_id", report.RunID).Msg("send report failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// FormatReport renders a plain-text run summary.
func FormatReport(r *model.DiscountReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Referral discount run %s\n", r.RunID)
	fmt.Fprintf(&b, "Processed: %d | Applied: %d | Skipped: %d | Failed: %d\n",
		r.TotalProcessed, r.SuccessCount, r.SkippedCount, r.FailureCount)
	fmt.Fprintf(&b, "Duration: %s", r.Duration.Round(time.Millisecond))

	listed := 0
	for _, res := range r.Results {
		if res.Outcome != model.OutcomeFailed {
			continue
		}
		if listed == 0 {
			b.WriteString("\nFailures:")
		}
		if listed == maxListedFailures {
			fmt.Fprintf(&b, "\n... and %d more", r.FailureCount-listed)
			break
		}
		fmt.Fprintf(&b, "\n- %s: %s", MaskEmail(res.Email), res.Error)
		listed++
	}
	return b.String()
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
