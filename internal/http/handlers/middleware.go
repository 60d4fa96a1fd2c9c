package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Identity attaches the authenticated user id to the request context when a
// valid token is present, either as a Bearer header or a "token" query
// parameter (the webview opens in an embedded browser and can only pass the
// latter). Requests without a valid token simply carry no user id; each
// handler decides how to answer unauthenticated callers.
func Identity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimPrefix(h, "Bearer ")
		}
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.Next()
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.Next()
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.Next()
			return
		}
		c.Set("userID", sub)
		c.Next()
	}
}
