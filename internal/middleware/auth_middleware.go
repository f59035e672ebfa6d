package middleware

import (
	"net/http"
	"strings"

	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// OperatorAuth admits requests carrying a valid operator bearer token.
func OperatorAuth(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := service.ParseOperatorToken(extractBearer(c))
		if err != nil {
			status := statusOrUnauthorized(services.HTTPStatus(err))
			c.JSON(status, httpdto.NewErrorResponse(err.Error(), services.ErrorCode(err)))
			c.Abort()
			return
		}

		ctx := services.WithOperatorContext(c.Request.Context(), claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// statusOrUnauthorized keeps abort responses inside the 4xx range.
func statusOrUnauthorized(status int) int {
	if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
		return http.StatusUnauthorized
	}
	return status
}
