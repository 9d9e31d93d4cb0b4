// Package agenda holds the personal tasks and notes tracker: an in-memory
// snapshot that every mutation updates and persists as one blob.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"zen-records/domain"
	"zen-records/notice"
	"zen-records/storage"
)

const tracerName = "zen-records/agenda"

// App owns the agenda state. All methods are safe for concurrent use; calls
// are applied one at a time.
type App struct {
	mu      sync.Mutex
	state   domain.AgendaSnapshot
	store   Store
	notices notice.Notifier
	logger  *log.Logger
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// New creates an App. Call Open before use.
func New(store Store, notices notice.Notifier, logger *log.Logger) *App {
	if store == nil {
		panic("agenda.New: store is nil")
	}
	if notices == nil {
		notices = notice.Discard{}
	}
	if logger == nil {
		logger = log.New()
	}
	return &App{
		store:   store,
		notices: notices,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		newID:   uuid.NewString,
		state:   domain.EmptyAgenda(time.Now()),
	}
}

// Open loads the persisted snapshot. A missing or unreadable snapshot is
// replaced by the seeded default; nothing here is fatal.
func (a *App) Open(ctx context.Context) {
	ctx, span := a.tracer.Start(ctx, "agenda.open")
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	snap, err := a.store.Load(ctx)
	switch {
	case err == nil:
		a.state = snap.Clone()
		span.SetAttributes(attribute.Int("agenda.tasks", len(snap.Tasks)), attribute.Int("agenda.notes", len(snap.Notes)))
		return
	case errors.Is(err, storage.ErrNotFound):
		a.logger.Info("agenda: no saved data, loading examples")
	case errors.Is(err, storage.ErrCorrupt):
		a.logger.WithError(err).Warn("agenda: saved data unreadable, loading examples")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.WithError(err).Error("agenda: load failed")
		a.notices.Notify(notice.Error, "Could not read saved data")
		// Keep whatever is stored untouched until the next mutation.
		a.state = domain.DefaultAgenda(now)
		return
	}
	a.state = domain.DefaultAgenda(now)
	a.persist(ctx)
}

// Now returns the clock used for dates and timestamps.
func (a *App) Now() time.Time {
	return a.now()
}

// Snapshot returns a copy of the current state.
func (a *App) Snapshot() domain.AgendaSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// LastBackup returns the last backup timestamp.
func (a *App) LastBackup() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Settings.LastBackup
}

// persist saves the state. A failure becomes an error notice; the in-memory
// state stays as it is. Callers hold a.mu.
func (a *App) persist(ctx context.Context) bool {
	if err := a.store.Save(ctx, a.state); err != nil {
		a.logger.WithError(fmt.Errorf("%w: %v", domain.ErrPersistence, err)).Error("agenda: save failed")
		text := "Could not save data locally"
		if errors.Is(err, storage.ErrQuotaExceeded) {
			text = "Could not save data locally: storage is full"
		}
		a.notices.Notify(notice.Error, text)
		return false
	}
	return true
}

// touch stamps the automatic backup time and persists. Callers hold a.mu.
func (a *App) touch(ctx context.Context) bool {
	a.state.Settings.LastBackup = domain.Stamp(a.now())
	return a.persist(ctx)
}

func (a *App) reject(err error) error {
	a.notices.Notify(notice.Warning, validationText(err))
	return err
}

func validationText(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

// SetFocus sets the trimmed focus text; an empty text clears it.
func (a *App) SetFocus(ctx context.Context, text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Focus = strings.TrimSpace(text)
	a.touch(ctx)
	a.notices.Notify(notice.Success, "Focus set")
	return a.state.Focus
}

func (a *App) addTask(ctx context.Context, text string, p domain.Priority, msg string) (domain.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	text, err := domain.ValidateTaskText(text)
	if err != nil {
		return domain.Task{}, a.reject(err)
	}
	now := a.now()
	t := domain.Task{
		ID:        domain.NextID(now, a.state.TaskIDs()...),
		Text:      text,
		Important: p == domain.PriorityImportant,
		Urgent:    p == domain.PriorityUrgent,
		Date:      domain.DateOf(now),
	}
	a.state.Tasks = append(a.state.Tasks, t)
	a.touch(ctx)
	a.notices.Notify(notice.Success, msg)
	return t, nil
}

// AddTask appends a task dated today with the given priority.
func (a *App) AddTask(ctx context.Context, text string, p domain.Priority) (domain.Task, error) {
	return a.addTask(ctx, text, p, "Task added")
}

// QuickTask appends a plain task dated today.
func (a *App) QuickTask(ctx context.Context, text string) (domain.Task, error) {
	return a.addTask(ctx, text, domain.PriorityNormal, "Task added for today")
}

// ToggleTask flips the done flag in place. An unknown id is a no-op.
func (a *App) ToggleTask(ctx context.Context, id int64) (domain.Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.state.TaskIndex(id)
	if i < 0 {
		return domain.Task{}, false
	}
	a.state.Tasks[i].Done = !a.state.Tasks[i].Done
	t := a.state.Tasks[i]
	a.touch(ctx)
	if t.Done {
		a.notices.Notify(notice.Success, "Task completed")
	} else {
		a.notices.Notify(notice.Success, "Task marked as pending")
	}
	return t, true
}

// DeleteTask removes a task. An unknown id is a no-op.
func (a *App) DeleteTask(ctx context.Context, id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.state.TaskIndex(id)
	if i < 0 {
		return false
	}
	a.state.Tasks = append(a.state.Tasks[:i:i], a.state.Tasks[i+1:]...)
	a.touch(ctx)
	a.notices.Notify(notice.Info, "Task deleted")
	return true
}

// AddNote prepends a note dated today.
func (a *App) AddNote(ctx context.Context, title, body string) (domain.Note, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	title, body, err := domain.ValidateNoteInput(title, body)
	if err != nil {
		return domain.Note{}, a.reject(err)
	}
	now := a.now()
	n := domain.Note{
		ID:    domain.NextID(now, a.state.NoteIDs()...),
		Title: title,
		Body:  body,
		Date:  domain.DateOf(now),
	}
	a.state.Notes = append([]domain.Note{n}, a.state.Notes...)
	a.touch(ctx)
	a.notices.Notify(notice.Success, "Note saved")
	return n, nil
}

// DeleteNote removes a note. An unknown id is a no-op.
func (a *App) DeleteNote(ctx context.Context, id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.state.NoteIndex(id)
	if i < 0 {
		return false
	}
	a.state.Notes = append(a.state.Notes[:i:i], a.state.Notes[i+1:]...)
	a.touch(ctx)
	a.notices.Notify(notice.Info, "Note deleted")
	return true
}
