package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/ametov/paraphrase-bot/internal/models"
)

type UserRepo interface {
	Register(user models.User) (models.User, error)
	CheckIfUserExists(userId int64) (bool, error)
	GetUser(userId int64) (models.User, error)
}

// UserRegistrar creates a user record on first contact and attaches the
// loaded user to the telebot context for downstream handlers.
type UserRegistrar struct {
	UserRepo UserRepo
}

func (u *UserRegistrar) Middleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := c.Get("requestContext").(context.Context)
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}

			exists, err := u.UserRepo.CheckIfUserExists(sender.ID)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to check user", "error", err)
				return c.Send("Something went wrong. Please try again later.")
			}

			var user models.User
			if !exists {
				user, err = u.UserRepo.Register(models.User{
					Id:        sender.ID,
					FirstName: sender.FirstName,
					LastName:  sender.LastName,
					Username:  sender.Username,
					ChatId:    c.Chat().ID,
				})
				if err != nil {
					slog.ErrorContext(ctx, "Failed to register user", "error", err)
					return c.Send("Something went wrong. Please try again later.")
				}
				slog.InfoContext(ctx, "Registered new user", "user_id", user.Id)
			} else {
				user, err = u.UserRepo.GetUser(sender.ID)
				if err != nil {
					slog.ErrorContext(ctx, "Failed to load user", "error", err)
					return c.Send("Something went wrong. Please try again later.")
				}
			}

			c.Set("user", user)
			return next(c)
		}
	}
}
