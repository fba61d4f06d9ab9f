// Package handlers is the telegram-facing presentation layer. It only
// parses commands, calls the core services and renders their results;
// all portal knowledge lives below it.
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"itec-bot/booking"
	"itec-bot/config"
	"itec-bot/scanner"
	"itec-bot/types"
)

const commandTimeout = 5 * time.Minute

type Handler struct {
	Bot     *tgbotapi.BotAPI
	Scanner *scanner.Scanner
	Booking *booking.Runner
	cfg     *config.Config
	log     *zap.SugaredLogger
}

func New(bot *tgbotapi.BotAPI, sc *scanner.Scanner, bk *booking.Runner, cfg *config.Config, log *zap.SugaredLogger) *Handler {
	return &Handler{Bot: bot, Scanner: sc, Booking: bk, cfg: cfg, log: log}
}

func (h *Handler) creds() types.Credentials {
	return types.Credentials{Email: h.cfg.Email, IDNumber: h.cfg.IDNumber}
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.Bot.Send(msg); err != nil {
		h.log.Warnw("sending telegram message failed", "err", err)
	}
}

func (h *Handler) HandleStart(msg *tgbotapi.Message) {
	h.reply(msg.Chat.ID, strings.Join([]string{
		"Court booking bot. Commands:",
		"/scan [days ahead] — availability for a day",
		"/durations HH:MM [days ahead] — how long each court is free",
		"/book HH:MM [court] [days ahead] — reserve a slot",
		"/history — your rentals",
		"/cancelrental <allocation id> — cancel a rental",
		"/clearcache — drop cached opening hours",
	}, "\n"))
}

// HandleScan runs a full day scan and renders one line per time slot,
// with consecutive fully-booked times compressed into ranges.
func (h *Handler) HandleScan(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	date := h.dateArg(firstArg(msg))
	h.reply(msg.Chat.ID, "Scanning "+date+"...")

	rows, err := h.Scanner.ScanDay(ctx, h.cfg.UnitID, date, h.creds())
	if err != nil {
		h.reply(msg.Chat.ID, "Scan failed: "+err.Error())
		return
	}
	if len(rows) == 0 {
		h.reply(msg.Chat.ID, "No bookable times left on "+date+".")
		return
	}
	h.reply(msg.Chat.ID, renderScan(date, rows))
}

// HandleDurations reports, for one start time, the longest contiguous
// booking each court still allows.
func (h *Handler) HandleDurations(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		h.reply(msg.Chat.ID, "Usage: /durations HH:MM [days ahead]")
		return
	}
	hour := args[0]
	date := h.dateArg(argAt(args, 1))

	byCourt, err := h.Scanner.ScanDurations(ctx, h.cfg.UnitID, date, hour, h.creds())
	if err != nil {
		h.reply(msg.Chat.ID, "Duration lookup failed: "+err.Error())
		return
	}
	h.reply(msg.Chat.ID, renderDurations(date, hour, byCourt))
}

// HandleBook searches the requested time, picks the target court (or
// the first offered one) and drives the booking wizard, relaying each
// phase as a progress message.
func (h *Handler) HandleBook(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		h.reply(msg.Chat.ID, "Usage: /book HH:MM [court] [days ahead]")
		return
	}
	hour := args[0]
	wantCourt, _ := strconv.Atoi(argAt(args, 1))
	date := h.dateArg(argAt(args, 2))

	res, err := h.Scanner.Search(ctx, types.TimeSlotQuery{
		UnitID: h.cfg.UnitID, Date: date, StartHour: hour, Duration: 1,
	}, h.creds())
	if err != nil {
		h.reply(msg.Chat.ID, "Search failed: "+err.Error())
		return
	}
	if res.Status != types.StatusAvailable || len(res.Slots) == 0 {
		h.reply(msg.Chat.ID, fmt.Sprintf("Nothing to book at %s on %s (%s).", hour, date, res.Status))
		return
	}

	target := res.Slots[0]
	for _, s := range res.Slots {
		if s.CourtNumber == wantCourt {
			target = s
			break
		}
	}
	h.reply(msg.Chat.ID, fmt.Sprintf("Booking court %d at %s on %s...", target.CourtNumber, hour, date))

	err = h.Booking.Book(ctx, booking.Request{
		UnitID:    h.cfg.UnitID,
		CourtType: h.cfg.CourtType,
		Date:      date,
		Hour:      hour,
		Duration:  target.Duration,
		CourtID:   target.CourtID,
	}, h.creds(), func(ev booking.ProgressEvent) {
		h.reply(msg.Chat.ID, renderProgress(ev))
	})
	if err != nil {
		h.log.Warnw("booking attempt failed", "date", date, "hour", hour, "err", err)
	}
}

func (h *Handler) HandleHistory(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	rentals, err := h.Scanner.RentalHistory(ctx, h.creds())
	if err != nil {
		h.reply(msg.Chat.ID, "History fetch failed: "+err.Error())
		return
	}
	h.reply(msg.Chat.ID, renderRentals(rentals))
}

func (h *Handler) HandleCancelRental(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	allocationID := firstArg(msg)
	if allocationID == "" {
		h.reply(msg.Chat.ID, "Usage: /cancelrental <allocation id>")
		return
	}
	if err := h.Scanner.CancelRental(ctx, allocationID, h.creds()); err != nil {
		h.reply(msg.Chat.ID, "Cancellation failed: "+err.Error())
		return
	}
	h.reply(msg.Chat.ID, "Rental "+allocationID+" cancelled.")
}

func (h *Handler) HandleClearCache(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Scanner.ClearCache(ctx); err != nil {
		h.reply(msg.Chat.ID, "Cache clear failed: "+err.Error())
		return
	}
	h.reply(msg.Chat.ID, "Hour cache cleared.")
}

// dateArg turns an optional "days ahead" argument into a calendar date.
func (h *Handler) dateArg(arg string) string {
	days := h.cfg.DaysAhead
	if arg != "" {
		if n, err := strconv.Atoi(arg); err == nil && n >= 0 {
			days = n
		}
	}
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func firstArg(msg *tgbotapi.Message) string {
	return argAt(strings.Fields(msg.CommandArguments()), 0)
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
