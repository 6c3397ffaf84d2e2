package router

import (
	"time"

	tg "github.com/shmeleva/TiKGingerbreadBot/core/telegram"
	"github.com/shmeleva/TiKGingerbreadBot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// IntakeOptions controls how conversational updates reach the intake handler.
type IntakeOptions struct {
	// Intake receives every text, photo and video message.
	Intake tele.HandlerFunc
	// Unsupported handles message kinds the intake does not accept.
	Unsupported tele.HandlerFunc
}

// IntakeRoutes builds handlers for the conversational message flow.
// Text, photo and video updates all funnel into a single intake handler
// which owns command matching and reply continuations.
func IntakeRoutes(opts IntakeOptions) []tg.Route {
	wrap := func(name string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if opts.Intake == nil {
				logHandlerSummary(c, name, start, "skip", "ok", nil)
				return nil
			}
			return handleWithSummary(c, name, start, "", "", func() error {
				return opts.Intake(c)
			})
		}
	}

	unsupported := func(c tele.Context) error {
		start := time.Now()
		if opts.Unsupported == nil {
			logHandlerSummary(c, "unsupported_media", start, "skip", "ok", nil)
			return nil
		}
		return handleWithSummary(c, "unsupported_media", start, "", "", func() error {
			return opts.Unsupported(c)
		})
	}

	routes := []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(wrap("intake_text"))),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(wrap("intake_photo"))),
		},
		{
			Endpoint: tele.OnVideo,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(wrap("intake_video"))),
		},
	}

	for _, ep := range []string{tele.OnDocument, tele.OnSticker, tele.OnVoice, tele.OnAudio} {
		routes = append(routes, tg.Route{
			Endpoint: ep,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(unsupported)),
		})
	}

	return routes
}
