package logging

import (
	"io"
	"log/slog"
	"os"
)

// devはテキスト、それ以外はJSONで標準エラーに出す
func New(env string) *slog.Logger {
	return newLogger(os.Stderr, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	var h slog.Handler
	if env == "" || env == "dev" {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.New(h)
}

// テストなどで捨てる用
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
