// Package bot routes chat updates through search, navigation, dispatch and indexing.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmunix/cinedex/internal/catalog"
	"github.com/vmunix/cinedex/internal/dispatch"
	"github.com/vmunix/cinedex/internal/events"
	"github.com/vmunix/cinedex/internal/nav"
	"github.com/vmunix/cinedex/internal/search"
	"github.com/vmunix/cinedex/pkg/release"
)

//go:generate mockgen -destination=mocks/mock_messenger.go -package=mocks github.com/vmunix/cinedex/internal/bot Messenger

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMenu(ctx context.Context, chatID int64, menu nav.Menu) error
	SendText(ctx context.Context, chatID int64, text string) error
	Deliver(ctx context.Context, chatID int64, locator string) error
}

// UpdateKind identifies an inbound update.
type UpdateKind string

const (
	UpdateText   UpdateKind = "text"
	UpdateButton UpdateKind = "button"
	UpdateFile   UpdateKind = "file"
)

// Update is one inbound event from the transport.
type Update struct {
	Kind   UpdateKind       `json:"kind"`
	ChatID int64            `json:"chat_id"`
	UserID int64            `json:"user_id"`
	Text   string           `json:"text,omitempty"` // message text or button token
	File   *catalog.Posting `json:"file,omitempty"` // file postings only
}

// Replies.
const (
	MsgDenied        = "Sorry, this bot is private."
	MsgQueryTooShort = "Please send at least 2 characters to search."
	MsgUnavailable   = "This item is no longer available."
	MsgExpired       = "That button has expired. Please search again."
	MsgFailed        = "Something went wrong. Please try again."
)

// Indexer adds posted files to the catalog.
type Indexer interface {
	AddRecord(ctx context.Context, p catalog.Posting) (*catalog.Record, error)
}

// Navigator resolves navigation tokens.
type Navigator interface {
	Resolve(ctx context.Context, token string) (*nav.View, error)
	SearchToken(query string) string
}

// Suggester offers a close title when a search finds nothing.
type Suggester interface {
	Suggest(ctx context.Context, query string) (release.MatchResult, error)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Messenger  Messenger
	Navigator  Navigator
	Suggester  Suggester // optional
	Indexer    Indexer
	Dispatcher *dispatch.Dispatcher
	Bus        events.Publisher // optional
}

// ErrForbidden is returned for file postings from a source that may not add to the catalog.
var ErrForbidden = errors.New("posting source not allowed")

// Access limits who may talk to the bot and who may post files into the catalog.
type Access struct {
	AllowedUsers []int64 // empty admits everyone
	SourceChats  []int64 // chats whose file postings are indexed; empty defers to AllowedUsers
}

// Bot handles updates. It keeps no per-user state; dispatches run in their own
// goroutines and can be awaited with Wait.
type Bot struct {
	Deps
	allowed map[int64]bool
	sources map[int64]bool
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New creates a bot.
func New(d Deps, access Access, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if d.Dispatcher == nil {
		d.Dispatcher = dispatch.NewDispatcher(dispatch.DefaultPace, d.Bus, logger)
	}
	return &Bot{
		Deps:    d,
		allowed: idSet(access.AllowedUsers),
		sources: idSet(access.SourceChats),
		logger:  logger.With("component", "bot"),
	}
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Allowed reports whether userID may use the bot.
func (b *Bot) Allowed(userID int64) bool {
	return len(b.allowed) == 0 || b.allowed[userID]
}

// AcceptsFiles reports whether a file posted by userID in chatID may be indexed.
func (b *Bot) AcceptsFiles(chatID, userID int64) bool {
	if len(b.sources) > 0 {
		return b.sources[chatID]
	}
	return b.Allowed(userID)
}

// Handle processes one update. Errors are returned only for failures the transport may
// want to retry; user-facing problems are answered in chat.
func (b *Bot) Handle(ctx context.Context, u Update) error {
	switch u.Kind {
	case UpdateFile:
		if u.File == nil {
			return errors.New("file update without file")
		}
		if !b.AcceptsFiles(u.ChatID, u.UserID) {
			b.logger.Warn("file posting from unlisted source",
				"chat_id", u.ChatID,
				"user_id", u.UserID,
				"filename", u.File.Filename,
			)
			return fmt.Errorf("chat %d user %d: %w", u.ChatID, u.UserID, ErrForbidden)
		}
		return b.Index(ctx, *u.File)
	case UpdateText, UpdateButton:
	default:
		return fmt.Errorf("unknown update kind %q", u.Kind)
	}

	if !b.Allowed(u.UserID) {
		b.logger.Info("update from unlisted user", "user_id", u.UserID)
		return b.Messenger.SendText(ctx, u.ChatID, MsgDenied)
	}
	if u.Kind == UpdateText {
		return b.handleText(ctx, u.ChatID, u.Text)
	}
	return b.handleButton(ctx, u.ChatID, u.Text)
}

func (b *Bot) handleText(ctx context.Context, chatID int64, text string) error {
	q, err := search.ValidateQuery(text)
	if err != nil {
		return b.Messenger.SendText(ctx, chatID, MsgQueryTooShort)
	}

	v, err := b.Navigator.Resolve(ctx, b.Navigator.SearchToken(q))
	if err != nil {
		return b.fail(ctx, chatID, "search", err)
	}
	menu := *v.Menu
	if len(menu.Rows) == 0 && b.Suggester != nil {
		if row := b.suggestion(ctx, q); row != nil {
			menu.Rows = append(menu.Rows, row)
		}
	}
	return b.Messenger.SendMenu(ctx, chatID, menu)
}

func (b *Bot) suggestion(ctx context.Context, q string) []nav.Button {
	m, err := b.Suggester.Suggest(ctx, q)
	if err != nil {
		b.logger.Warn("suggest failed", "query", q, "error", err)
		return nil
	}
	if m.Confidence == release.ConfidenceNone {
		return nil
	}
	return []nav.Button{{
		Label: fmt.Sprintf("Did you mean %s?", m.Title),
		Token: b.Navigator.SearchToken(release.SearchKey(m.Title)),
	}}
}

func (b *Bot) handleButton(ctx context.Context, chatID int64, token string) error {
	v, err := b.Navigator.Resolve(ctx, token)
	switch {
	case errors.Is(err, nav.ErrNotFound):
		b.logger.Debug("stale token", "token", token, "error", err)
		return b.Messenger.SendText(ctx, chatID, MsgUnavailable)
	case errors.Is(err, nav.ErrInvalidToken):
		b.logger.Warn("invalid token", "token", token, "error", err)
		return b.Messenger.SendText(ctx, chatID, MsgExpired)
	case err != nil:
		return b.fail(ctx, chatID, "resolve", err)
	}

	if v.Dispatch != nil {
		b.startDispatch(ctx, chatID, *v.Dispatch)
		return nil
	}
	return b.Messenger.SendMenu(ctx, chatID, *v.Menu)
}

func (b *Bot) fail(ctx context.Context, chatID int64, op string, err error) error {
	b.logger.Error(op+" failed", "chat_id", chatID, "error", err)
	if sendErr := b.Messenger.SendText(ctx, chatID, MsgFailed); sendErr != nil {
		b.logger.Warn("send failure notice", "chat_id", chatID, "error", sendErr)
	}
	return err
}

// startDispatch delivers req in the background, then reports and re-renders the menu
// the request came from. The batch outlives the update's context.
func (b *Bot) startDispatch(ctx context.Context, chatID int64, req nav.DispatchRequest) {
	ctx = context.WithoutCancel(ctx)
	if len(req.Locators) > 1 {
		if err := b.Messenger.SendText(ctx, chatID, fmt.Sprintf("Sending %d files…", len(req.Locators))); err != nil {
			b.logger.Warn("send dispatch notice", "chat_id", chatID, "error", err)
		}
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		deliver := func(ctx context.Context, locator string) error {
			return b.Messenger.Deliver(ctx, chatID, locator)
		}
		sum := b.Dispatcher.Dispatch(ctx, chatID, req.Locators, deliver)

		if err := b.Messenger.SendText(ctx, chatID, summaryText(sum)); err != nil {
			b.logger.Warn("send dispatch summary", "chat_id", chatID, "error", err)
		}
		if req.Return == "" {
			return
		}
		v, err := b.Navigator.Resolve(ctx, req.Return)
		if err != nil || v.Menu == nil {
			b.logger.Debug("issuing menu no longer resolves", "token", req.Return, "error", err)
			return
		}
		if err := b.Messenger.SendMenu(ctx, chatID, *v.Menu); err != nil {
			b.logger.Warn("re-render menu", "chat_id", chatID, "error", err)
		}
	}()
}

// Wait blocks until every started dispatch has finished.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func summaryText(s dispatch.Summary) string {
	total := s.Sent + s.Failed
	switch {
	case s.Failed == 0 && total == 1:
		return "Sent 1 file."
	case s.Failed == 0:
		return fmt.Sprintf("Sent %d files.", s.Sent)
	default:
		return fmt.Sprintf("Sent %d of %d files (%d failed).", s.Sent, total, s.Failed)
	}
}

// Index adds a posted file to the catalog and reports the outcome on the bus.
func (b *Bot) Index(ctx context.Context, p catalog.Posting) error {
	rec, err := b.Indexer.AddRecord(ctx, p)
	if err != nil {
		b.logger.Warn("index failed", "filename", p.Filename, "locator", p.Locator, "error", err)
		b.publish(ctx, &events.IndexFailed{
			BaseEvent: events.NewBaseEvent(events.EventIndexFailed, events.EntityFile, p.Locator),
			Filename:  p.Filename,
			Reason:    err.Error(),
		})
		return err
	}

	kind := catalog.KindMovie
	if rec.Kind == release.KindEpisode {
		kind = catalog.KindSeries
	}
	b.publish(ctx, &events.FileIndexed{
		BaseEvent: events.NewBaseEvent(events.EventFileIndexed, events.EntityFile, p.Locator),
		Filename:  p.Filename,
		Kind:      string(kind),
		Key:       rec.SearchKey,
		Title:     rec.Title,
		Season:    rec.Season,
		Episode:   rec.Episode,
		Quality:   rec.Quality.String(),
	})
	return nil
}

func (b *Bot) publish(ctx context.Context, e events.Event) {
	if b.Bus == nil {
		return
	}
	if err := b.Bus.Publish(ctx, e); err != nil {
		b.logger.Warn("publish event failed", "type", e.EventType(), "error", err)
	}
}
