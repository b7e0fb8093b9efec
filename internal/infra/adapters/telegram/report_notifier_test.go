//go:build !integration

package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-billing/internal/domain/model"
)

type fakeSender struct {
	sent   []tgbotapi.MessageConfig
	failOn int64
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if msg.ChatID == f.failOn {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func sampleReport() *model.DiscountReport {
	r := &model.DiscountReport{RunID: "01HRUN", Duration: 1500 * time.Millisecond}
	r.Add(model.ResultFor("alice@salon.com", model.Applied("c1", 0, "")))
	r.Add(model.ResultFor("bob@salon.com", model.SkippedNotEligible("No active subscription")))
	r.Add(model.ResultFor("carol@salon.com", model.Failed("c3", errors.New("apply coupon: card declined"))))
	return r
}

func TestFormatReport(t *testing.T) {
	text := FormatReport(sampleReport())

	assert.Contains(t, text, "Referral discount run 01HRUN")
	assert.Contains(t, text, "Processed: 3 | Applied: 1 | Skipped: 1 | Failed: 1")
	assert.Contains(t, text, "- c***@salon.com: apply coupon: card declined")
	assert.NotContains(t, text, "carol@", "addresses must be masked")
	assert.NotContains(t, text, "bob", "skips are not listed")
}

func TestFormatReport_CapsFailures(t *testing.T) {
	r := &model.DiscountReport{RunID: "run"}
	for i := 0; i < maxListedFailures+3; i++ {
		r.Add(model.ResultFor(fmt.Sprintf("u%d@x.com", i), model.Failed("", errors.New("boom"))))
	}
	text := FormatReport(r)
	assert.Equal(t, maxListedFailures, strings.Count(text, "\n- "))
	assert.Contains(t, text, "... and 3 more")
}

func TestReportNotifier_SendsToEveryAdmin(t *testing.T) {
	bot := &fakeSender{failOn: 2}
	n := newReportNotifier(bot, []int64{1, 2, 3}, nil)

	err := n.NotifyDiscountReport(context.Background(), sampleReport())
	require.Error(t, err, "a failed chat is reported")
	require.Len(t, bot.sent, 2, "other chats still receive the report")
	assert.Equal(t, int64(1), bot.sent[0].ChatID)
	assert.Equal(t, int64(3), bot.sent[1].ChatID)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "o***@salon.com", MaskEmail("owner@salon.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
}
