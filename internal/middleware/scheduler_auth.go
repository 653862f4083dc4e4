package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// 定期実行（cron）からの呼び出しだけ通す。
// Authorization: Bearer <CRON_SECRET> を定数時間で比較する
func SchedulerAuth(secret string) echo.MiddlewareFunc {
	want := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, ok := bearerToken(c)
			if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(tok), want) != 1 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			return next(c)
		}
	}
}
