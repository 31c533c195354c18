package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes annotates the New Relic transaction started by nrgin
// with the caller and the booking or payment the request addresses, and
// reports handler errors recorded with c.Error. It is a no-op when the
// request carries no transaction.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if actor, ok := ActorFrom(c); ok {
			txn.AddAttribute("user.id", actor.UserID)
			txn.AddAttribute("user.admin", actor.IsAdmin())
		}
		if id := c.Param("id"); id != "" {
			txn.AddAttribute("resource.id", id)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
