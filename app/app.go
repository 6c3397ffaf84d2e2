package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/shmeleva/TiKGingerbreadBot/competition"
	"github.com/shmeleva/TiKGingerbreadBot/competition/store"
	"github.com/shmeleva/TiKGingerbreadBot/core/bootstrap"
	corecmd "github.com/shmeleva/TiKGingerbreadBot/core/cmd"
	coretelegram "github.com/shmeleva/TiKGingerbreadBot/core/telegram"
	"github.com/shmeleva/TiKGingerbreadBot/core/telegram/commands"
	tghelpers "github.com/shmeleva/TiKGingerbreadBot/core/telegram/helpers"
	"github.com/shmeleva/TiKGingerbreadBot/core/telegram/router"
)

// App holds the bootstrapped application state.
type App struct {
	cfg   *Config
	db    *sqlx.DB
	store *store.Postgres

	// set during OnStart, before the bot begins receiving updates
	dispatcher *competition.Dispatcher
}

// Bootstrap initializes logging, the database and the persistence
// gateway, returning an App ready to produce Telegram run options.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.DatabaseConfig(),
		Seeders: []bootstrap.Seeder{
			bootstrap.SeederFunc(seedCounter),
		},
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:   cfg,
		db:    res.DB,
		store: store.NewPostgres(res.DB),
	}, nil
}

// seedCounter guarantees the sequence counter row exists even when the
// database predates the seeding migration.
func seedCounter(ctx context.Context, db *sqlx.DB) error {
	const q = `INSERT INTO counters (name, value) VALUES ($1, 0) ON CONFLICT (name) DO NOTHING`
	_, err := db.ExecContext(ctx, q, store.CounterName)
	return err
}

// TelegramRunOptions assembles routes, middlewares and lifecycle hooks
// for the core bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()

	reg := coretelegram.NewRegistry()
	a.registerSlashCommands(reg)

	routes := router.IntakeRoutes(router.IntakeOptions{
		Intake: a.handleIntake,
	})
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			out := &telebotOutbound{bot: rt.Bot}
			var bcast competition.Broadcaster
			if len(core.Broadcast.Chats) > 0 {
				bcast = &channelBroadcaster{
					bot:   rt.Bot,
					chats: core.Broadcast.Chats,
					disp:  rt.Dispatcher,
				}
			}
			a.dispatcher = competition.NewDispatcher(a.store, out, bcast)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}

func (a *App) registerSlashCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleIntake,
		Description: "Start a conversation with the bot",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleIntake,
		Description: "Show what the bot can do",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Show participation counters",
		AdminOnly:   true,
		Hidden:      true,
	})
}

// handleIntake translates a chat update into a domain message and runs
// one dispatcher turn. Slash texts fall through command matching inside
// the dispatcher and land on the default prompt, which is exactly what
// /start and /help should produce.
func (a *App) handleIntake(c tele.Context) error {
	if a.dispatcher == nil || c.Message() == nil {
		return nil
	}
	msg, ok := incomingFromContext(c)
	if !ok {
		return nil
	}
	return a.dispatcher.Handle(tghelpers.BuildContext(c), msg)
}

func incomingFromContext(c tele.Context) (competition.Incoming, bool) {
	m := c.Message()
	sender := c.Sender()
	if m == nil || sender == nil {
		return competition.Incoming{}, false
	}

	msg := competition.Incoming{
		UserID:       sender.ID,
		Username:     sender.Username,
		FirstName:    sender.FirstName,
		ChatID:       m.Chat.ID,
		MediaGroupID: m.AlbumID,
		SentAt:       m.Time(),
	}

	switch {
	case m.Photo != nil:
		msg.Kind = competition.KindPhoto
		msg.FileID = m.Photo.FileID
	case m.Video != nil:
		msg.Kind = competition.KindVideo
		msg.FileID = m.Video.FileID
	case m.Text != "":
		msg.Kind = competition.KindText
		msg.Text = m.Text
	default:
		return competition.Incoming{}, false
	}
	return msg, true
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	users, err := a.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	subs, err := a.store.CountSubmissions(ctx)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Participants: %d\nSubmissions: %d", users, subs))
}
