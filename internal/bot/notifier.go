package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

var htmlTagReplacer = strings.NewReplacer(
	"<b>", "", "</b>", "",
	"<i>", "", "</i>", "",
	"<code>", "", "</code>", "",
)

// telegramNotifier delivers lifecycle messages to permit owners. The bot is
// bound in OnStart because the runtime builds it after the permit service
// already exists.
type telegramNotifier struct {
	bot atomic.Pointer[tele.Bot]
}

func (n *telegramNotifier) Bind(b *tele.Bot) {
	n.bot.Store(b)
}

// Notify sends HTML-formatted text, retrying once with tags stripped when the
// formatted send is rejected.
func (n *telegramNotifier) Notify(_ context.Context, userID int64, text string) error {
	b := n.bot.Load()
	if b == nil {
		return fmt.Errorf("notifier: bot not bound yet")
	}
	to := &tele.User{ID: userID}
	if _, err := b.Send(to, text, tele.ModeHTML); err != nil {
		if _, plainErr := b.Send(to, htmlTagReplacer.Replace(text)); plainErr != nil {
			return fmt.Errorf("notify user %d: %w", userID, plainErr)
		}
	}
	return nil
}
