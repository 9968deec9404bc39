package tgbot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"github.com/ametov/paraphrase-bot/internal/models"
	"github.com/ametov/paraphrase-bot/internal/services"
)

func RegisterHandlers(
	bot *tele.Bot,
	machine *services.SessionStateMachine,
	gate *services.VerificationGate,
	adminService *services.AdminService,
	adminCommand string,
) {
	handler := NewBotHandler(bot, machine, gate, adminService)

	bot.Handle("/start", handler.Start)
	bot.Handle(adminCommand, handler.AdminEntry)
	bot.Handle(tele.OnText, handler.HandleText)
	bot.Handle(&tele.Btn{Unique: "count"}, handler.HandleCount)
	bot.Handle(&tele.Btn{Unique: "add_more"}, handler.HandleAddMore)
	bot.Handle(&tele.Btn{Unique: "new_message"}, handler.HandleNewMessage)
	bot.Handle(&tele.Btn{Unique: "try_invite"}, handler.HandleTryInvite)
	bot.Handle(&tele.Btn{Unique: "verify"}, handler.HandleVerify)
}

type BotHandler struct {
	bot          *tele.Bot
	machine      *services.SessionStateMachine
	gate         *services.VerificationGate
	adminService *services.AdminService
}

func NewBotHandler(
	bot *tele.Bot,
	machine *services.SessionStateMachine,
	gate *services.VerificationGate,
	adminService *services.AdminService,
) *BotHandler {
	return &BotHandler{
		bot:          bot,
		machine:      machine,
		gate:         gate,
		adminService: adminService,
	}
}

func (h *BotHandler) Start(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)
	payload := c.Message().Payload
	slog.DebugContext(ctx, "Got /start", "payload", payload)
	return h.render(ctx, c, h.machine.HandleStart(ctx, user, payload))
}

func (h *BotHandler) HandleText(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)
	text := c.Message().Text

	if h.adminService.AwaitingPassword(user.Id) {
		return h.handleAdminPassword(ctx, c, user, text)
	}

	slog.DebugContext(ctx, "Got text message")
	return h.render(ctx, c, h.machine.HandleText(ctx, user, text))
}

func (h *BotHandler) HandleCount(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)
	if err := c.Respond(); err != nil {
		return err
	}
	if len(c.Args()) == 0 {
		return nil
	}
	count, err := strconv.Atoi(c.Args()[0])
	if err != nil {
		slog.ErrorContext(ctx, "Bad count callback data", "data", c.Args()[0])
		return nil
	}
	if err := c.Notify(tele.Typing); err != nil {
		return err
	}
	return h.render(ctx, c, h.machine.HandleCount(ctx, user, count))
}

func (h *BotHandler) HandleAddMore(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)
	if err := c.Respond(); err != nil {
		return err
	}
	if err := c.Notify(tele.Typing); err != nil {
		return err
	}
	return h.render(ctx, c, h.machine.HandleAddMore(ctx, user))
}

func (h *BotHandler) HandleNewMessage(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)
	if err := c.Respond(); err != nil {
		return err
	}
	return h.render(ctx, c, h.machine.HandleNewMessage(ctx, user))
}

func (h *BotHandler) HandleTryInvite(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)
	if err := c.Respond(); err != nil {
		return err
	}
	return h.render(ctx, c, h.machine.HandleTryInvite(ctx, user))
}

func (h *BotHandler) HandleVerify(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)
	if err := c.Respond(); err != nil {
		return err
	}
	return h.render(ctx, c, h.machine.HandleVerify(ctx, user))
}

func (h *BotHandler) AdminEntry(c tele.Context) error {
	user := c.Get("user").(models.User)
	h.adminService.BeginAuth(user.Id)
	return c.Send("Enter admin password:")
}

func (h *BotHandler) handleAdminPassword(ctx context.Context, c tele.Context, user models.User, candidate string) error {
	ok, err := h.adminService.SubmitPassword(user.Id, user.DisplayName(), candidate)
	if err != nil {
		slog.ErrorContext(ctx, "Admin authentication error", "user_id", user.Id, "error", err)
		return c.Send("Admin password not configured.")
	}
	if !ok {
		slog.WarnContext(ctx, "Admin authentication failed", "user_id", user.Id)
		return c.Send("❌ Incorrect password. Try again.")
	}
	slog.InfoContext(ctx, "Admin authenticated", "user_id", user.Id)
	return c.Send("Authenticated as admin. You will receive daily reports.")
}

// render turns the state machine's actions into telebot sends, in order.
func (h *BotHandler) render(ctx context.Context, c tele.Context, actions []services.Action) error {
	for _, action := range actions {
		if err := h.renderOne(ctx, c, action); err != nil {
			return err
		}
	}
	return nil
}

func (h *BotHandler) renderOne(ctx context.Context, c tele.Context, action services.Action) error {
	switch action.Kind {
	case services.ActionSendText:
		return c.Send(action.Text)

	case services.ActionAskCount:
		selector := &tele.ReplyMarkup{}
		selector.Inline(selector.Row(
			selector.Data("2", "count", "2"),
			selector.Data("4", "count", "4"),
		))
		return c.Send(action.Text, selector)

	case services.ActionSendParaphrase:
		opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
		if action.Final {
			selector := &tele.ReplyMarkup{}
			selector.Inline(selector.Row(
				selector.Data("Add More", "add_more"),
				selector.Data("New Message", "new_message"),
			))
			opts.ReplyMarkup = selector
		}
		return c.Send(fmt.Sprintf("<pre>%s</pre>", html.EscapeString(action.Text)), opts)

	case services.ActionLimitNotice:
		selector := &tele.ReplyMarkup{}
		shareText := fmt.Sprintf("✨ Your friend invited you to use the Paraphrase Bot!\nStart here: %s", action.Link)
		selector.Inline(selector.Row(
			selector.Query("Share", shareText),
			selector.Data("Try Again", "try_invite"),
		))
		return c.Send(action.Text, selector)

	case services.ActionVerifyChallenge:
		selector := &tele.ReplyMarkup{}
		selector.Inline(
			selector.Row(selector.URL("Verify", action.Link)),
			selector.Row(selector.Data("I’ve verified", "verify")),
		)
		msg, err := h.bot.Send(c.Recipient(), action.Text, selector)
		if err != nil {
			return err
		}
		if err := h.gate.RegisterPrompt(c.Get("user").(models.User).Id, int64(msg.ID)); err != nil {
			slog.ErrorContext(ctx, "Failed to register verification prompt", "error", err)
		}
		return nil

	case services.ActionNotify:
		_, err := h.bot.Send(&tele.User{ID: action.TargetUserId}, action.Text)
		if err != nil {
			// Inviter notifications are best effort; the credit is already
			// applied.
			slog.WarnContext(ctx, "Failed to notify user", "target", action.TargetUserId, "error", err)
		}
		return nil

	default:
		slog.ErrorContext(ctx, "Unknown action kind", "kind", action.Kind)
		return nil
	}
}

// TelegramGateway adapts the bot to the narrow outbound interfaces the
// background services need.
type TelegramGateway struct {
	Bot *tele.Bot
}

func (t *TelegramGateway) NotifyUser(userId int64, text string) error {
	_, err := t.Bot.Send(&tele.User{ID: userId}, text)
	return err
}

func (t *TelegramGateway) DeleteMessage(chatId int64, messageId int64) error {
	return t.Bot.Delete(&tele.StoredMessage{
		MessageID: strconv.FormatInt(messageId, 10),
		ChatID:    chatId,
	})
}
