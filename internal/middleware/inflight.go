package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v3"

	"github.com/ametov/paraphrase-bot/internal/models"
)

// InflightGate lets at most one event per user be processed at a time.
// Events from the same user are causally ordered behind the in-flight one,
// which is what keeps ledger checks from racing a user against themselves.
type InflightGate struct {
	Locks sync.Map
}

func (g *InflightGate) Middleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Get("user").(models.User)
			userLock, _ := g.Locks.LoadOrStore(user.Id, make(chan struct{}, 1))
			userChan := userLock.(chan struct{})

			// Block rather than reject: a message sent while a batch is in
			// flight waits its turn, it does not abort the batch.
			userChan <- struct{}{}
			defer func() {
				<-userChan
			}()
			return next(c)
		}
	}
}
