package api

import (
	"errors"
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{models.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{models.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{models.ErrRefundNotFound, http.StatusNotFound, "refund_not_found"},
	{models.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{models.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{models.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{models.ErrGracePeriodExpired, http.StatusUnprocessableEntity, "grace_period_expired"},
	{models.ErrRefundExists, http.StatusConflict, "refund_exists"},
	{models.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{models.ErrDecisionInProgress, http.StatusConflict, "decision_in_progress"},
	{models.ErrOrderInProgress, http.StatusConflict, "order_in_progress"},
	{service.ErrInvalidItem, http.StatusBadRequest, "invalid_item"},
}

// respondError writes the JSON error body for err. Unknown errors are
// logged and reported as 500 without leaking details.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			message := models.Message(err)
			if message == "" {
				message = err.Error()
			}
			c.JSON(m.status, gin.H{"error": m.code, "message": message})
			return
		}
	}

	util.GetLogger().Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Something went wrong",
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": message})
}
