package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/RezaEskandarii/firejobs/types/config"
)

// demoHandlers are the job functions this binary can run.
func demoHandlers(logger *slog.Logger) []config.MethodHandler {
	return []config.MethodHandler{
		{
			TypeName:   "Sms",
			MethodName: "Send",
			Func: func(ctx context.Context, to, message string) error {
				if !strings.HasPrefix(to, "+") {
					return errors.New("phone number must be in E.164 format")
				}
				logger.InfoContext(ctx, "sending sms", "to", to, "length", len(message))
				return nil
			},
		},
		{
			TypeName:   "Log",
			MethodName: "Write",
			Func: func(ctx context.Context, message string) {
				logger.InfoContext(ctx, message)
			},
		},
	}
}
