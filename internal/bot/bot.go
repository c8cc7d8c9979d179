package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/sirupsen/logrus"
)

type Bot struct {
	Instance *telego.Bot
	Commands *Commands
	log      *logrus.Logger
	running  atomic.Bool
}

// NewBot creates the Telegram client. When settings carry no bot username
// it is looked up with getMe so referral links can be built.
func NewBot(ctx context.Context, token string, l Ledger, settings Settings, log *logrus.Logger) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if settings.BotUsername == "" {
		me, err := tgBot.GetMe(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get bot info: %w", err)
		}
		settings.BotUsername = me.Username
	}

	return &Bot{
		Instance: tgBot,
		Commands: NewCommands(l, settings, log),
		log:      log,
	}, nil
}

// Running reports whether the bot is polling for updates.
func (b *Bot) Running() bool {
	return b.running.Load()
}

// Start polls for updates until ctx is cancelled. Cancelling ctx closes the
// updates channel, which ends the handler loop.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create update handler: %w", err)
	}

	b.command(handler, "start", func(ctx context.Context, s Sender, args []string) string {
		payload := ""
		if len(args) > 0 {
			payload = args[0]
		}
		return b.Commands.Start(ctx, s, payload)
	})
	b.command(handler, "promote", func(ctx context.Context, s Sender, _ []string) string {
		return b.Commands.Promote(ctx, s)
	})
	b.command(handler, "buy", func(ctx context.Context, s Sender, _ []string) string {
		return b.Commands.Buy(ctx, s)
	})
	b.command(handler, "stats", func(ctx context.Context, s Sender, _ []string) string {
		return b.Commands.Stats(ctx, s)
	})
	b.command(handler, "bonus", func(ctx context.Context, s Sender, _ []string) string {
		return b.Commands.Bonus(ctx, s)
	})
	b.command(handler, "referral", func(ctx context.Context, s Sender, _ []string) string {
		return b.Commands.Referral(ctx, s)
	})
	b.command(handler, "groups", func(ctx context.Context, s Sender, _ []string) string {
		return b.Commands.Groups(ctx, s)
	})
	b.command(handler, "help", func(context.Context, Sender, []string) string {
		return b.Commands.Help()
	})
	b.command(handler, "grant", b.Commands.Grant)

	// Unknown commands
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		if update.Message.Chat.Type != telego.ChatTypePrivate {
			return nil
		}
		b.reply(ctx, update.Message.Chat.ID, b.Commands.Help())
		return nil
	}, th.AnyCommand())

	// Anything else sent in a private chat is treated as a music link
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if message.From == nil || message.Chat.Type != telego.ChatTypePrivate {
			return nil
		}
		b.reply(ctx, message.Chat.ID, b.Commands.Link(ctx.Context(), senderOf(message.From), message.Text))
		return nil
	}, th.AnyMessageWithText())

	b.running.Store(true)
	defer b.running.Store(false)
	b.log.WithField("username", b.Commands.settings.BotUsername).Info("bot started")

	handler.Start()
	b.log.Info("bot stopped")
	return nil
}

// Notify sends a Markdown message outside of an update, e.g. scheduled
// reports.
func (b *Bot) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeMarkdown))
	if err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

type commandFunc func(ctx context.Context, s Sender, args []string) string

func (b *Bot) command(handler *th.BotHandler, name string, fn commandFunc) {
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if message.From == nil {
			return nil
		}

		var args []string
		if parts := strings.Fields(message.Text); len(parts) > 1 {
			args = parts[1:]
		}

		b.reply(ctx, message.Chat.ID, fn(ctx.Context(), senderOf(message.From), args))
		return nil
	}, th.CommandEqual(name))
}

func (b *Bot) reply(ctx *th.Context, chatID int64, text string) {
	_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeMarkdown))
	if err != nil {
		b.log.WithField("chat_id", chatID).WithError(err).Warn("failed to send reply")
	}
}

func senderOf(u *telego.User) Sender {
	return Sender{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
