package app

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/shmeleva/TiKGingerbreadBot/competition"
	"github.com/shmeleva/TiKGingerbreadBot/core/logger"
	"github.com/shmeleva/TiKGingerbreadBot/core/telegram/keyboard"
	"github.com/shmeleva/TiKGingerbreadBot/core/telegram/sender"
)

// chatRecipient addresses a channel by @username.
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

func resolveRecipient(chat string) tele.Recipient {
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		return tele.ChatID(id)
	}
	return chatRecipient("@" + strings.TrimPrefix(chat, "@"))
}

func buildAlbum(media []competition.MediaRef) tele.Album {
	if len(media) == 0 {
		return nil
	}
	album := make(tele.Album, 0, len(media))
	for _, ref := range media {
		file := tele.File{FileID: ref.FileID}
		switch ref.Kind {
		case competition.KindVideo:
			album = append(album, &tele.Video{File: file, Caption: ref.Caption})
		default:
			album = append(album, &tele.Photo{File: file, Caption: ref.Caption})
		}
	}
	return album
}

// telebotOutbound delivers dispatcher replies over the bot API. Replies
// are sent synchronously so a turn's album always precedes its text.
type telebotOutbound struct {
	bot *tele.Bot
}

func (o *telebotOutbound) SendText(_ context.Context, chatID int64, text string, kb [][]string) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(kb) > 0 {
		opts.ReplyMarkup = keyboard.ReplyButtons(kb...)
	}
	_, err := o.bot.Send(tele.ChatID(chatID), text, opts)
	return err
}

func (o *telebotOutbound) SendAlbum(_ context.Context, chatID int64, media []competition.MediaRef) error {
	album := buildAlbum(media)
	if len(album) == 0 {
		return nil
	}
	_, err := o.bot.SendAlbum(tele.ChatID(chatID), album, tele.Silent, tele.ModeMarkdown)
	return err
}

// channelBroadcaster fans accepted submissions out to the configured
// channels through the async sender: each channel is an independent job,
// so one failing delivery never blocks or fails the others.
type channelBroadcaster struct {
	bot   *tele.Bot
	chats []string
	disp  *sender.Dispatcher
}

func (b *channelBroadcaster) Broadcast(ctx context.Context, caption string, media []competition.MediaRef) {
	album := buildAlbum(media)
	for _, chat := range b.chats {
		rec := resolveRecipient(chat)
		chat := chat
		deliver := func() error {
			if len(album) > 0 {
				if _, err := b.bot.SendAlbum(rec, album, tele.Silent); err != nil {
					return err
				}
			}
			_, err := b.bot.Send(rec, caption, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
			return err
		}

		if b.disp != nil {
			if err := b.disp.Enqueue(ctx, "broadcast", "sendMediaGroup", deliver); err == nil {
				continue
			}
		}
		if err := deliver(); err != nil {
			logger.TG.Warn("broadcast.failed",
				slog.String("event", "broadcast"),
				slog.String("channel", chat),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}
}
