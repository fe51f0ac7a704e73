// Package archive persists dispatched messages to SQLite so a finished
// simulation can be inspected offline. The Writer is a pipeline module:
// Record subscribes it to message types, deliveries buffer rows, and Run
// flushes the buffer once per event in a single transaction.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	runtimepkg "github.com/drblury/simflow/internal/runtime"
	errspkg "github.com/drblury/simflow/internal/runtime/errors"
	"github.com/drblury/simflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
)

// WriterConfig holds the archive settings.
type WriterConfig struct {
	// Name is the module instance name.
	Name string
	// Path is the SQLite database file to write.
	Path string
}

// Writer archives dispatched messages. Deliveries append to an in-memory
// buffer; Run writes the buffered rows and one events row per event, so a
// crash loses at most the current event.
type Writer struct {
	runtimepkg.BaseModule

	db  *sql.DB
	log loggingpkg.ServiceLogger

	mu      sync.Mutex
	pending []pendingRow

	eventsWritten   uint64
	messagesWritten uint64
}

type pendingRow struct {
	msgType  runtimepkg.MessageType
	channel  string
	detector string
	payload  string
}

// NewWriter opens the archive database, applies the connection pragmas and
// creates the schema. A nil logger falls back to the nop logger.
func NewWriter(cfg WriterConfig, log loggingpkg.ServiceLogger) (*Writer, error) {
	if cfg.Name == "" {
		return nil, errspkg.ErrModuleNameEmpty
	}
	if cfg.Path == "" {
		return nil, errspkg.ErrStorePathRequired
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}

	dsn := filepath.Clean(cfg.Path) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("simflow: archive %q: open %s: %w", cfg.Name, cfg.Path, err)
	}

	// Single writer connection; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("simflow: archive %q: open %s: %w", cfg.Name, cfg.Path, err)
	}

	w := &Writer{
		BaseModule: runtimepkg.NewBaseModule(cfg.Name),
		db:         db,
		log:        log,
	}
	if err := w.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("simflow: archive %q: init schema: %w", cfg.Name, err)
	}

	w.log.Debug("archive opened", loggingpkg.LogFields{
		"archive": cfg.Name,
		"path":    cfg.Path,
	})
	return w, nil
}

func (w *Writer) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		event INTEGER PRIMARY KEY,
		messages INTEGER NOT NULL,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event INTEGER NOT NULL,
		message_type TEXT NOT NULL,
		channel TEXT NOT NULL,
		detector TEXT,
		payload TEXT NOT NULL,
		stored_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_event ON messages(event);
	CREATE INDEX IF NOT EXISTS idx_messages_type ON messages(message_type);
	`
	_, err := w.db.Exec(schema)
	return err
}

// Record subscribes w to messages of type M on the option channel. Callers
// usually add Required so wiring validation catches an archive with nothing
// to write. The stored channel is the subscription channel, like the relay.
func Record[M runtimepkg.Message](w *Writer, m *runtimepkg.Messenger, opts ...runtimepkg.BindOption) error {
	if w == nil {
		return errspkg.ErrModuleRequired
	}

	msgType := runtimepkg.MessageTypeFor[M]()

	var channel string
	handler := func(_ context.Context, payload M) error {
		return w.buffer(msgType, channel, payload)
	}
	if err := runtimepkg.RegisterListener(m, w, handler, opts...); err != nil {
		return err
	}

	bindings := m.Bindings()
	for i := len(bindings) - 1; i >= 0; i-- {
		b := bindings[i]
		if b.Receiver == w.Name() && b.MessageType == msgType {
			channel = b.Channel
			break
		}
	}

	w.log.Debug("archive recording", loggingpkg.LogFields{
		"archive":      w.Name(),
		"message_type": string(msgType),
		"channel":      channel,
	})
	return nil
}

func (w *Writer) buffer(msgType runtimepkg.MessageType, channel string, payload runtimepkg.Message) error {
	body, err := jsoncodec.MarshalString(payload)
	if err != nil {
		return fmt.Errorf("simflow: archive %q: marshal %s: %w", w.Name(), msgType, err)
	}

	w.mu.Lock()
	w.pending = append(w.pending, pendingRow{
		msgType:  msgType,
		channel:  channel,
		detector: payload.Detector(),
		payload:  body,
	})
	w.mu.Unlock()
	return nil
}

// Run flushes the rows buffered since the previous flush and records the
// events row, all in one transaction. An event with no deliveries still
// gets its events row, so gaps in the table mean an aborted run, not an
// empty event.
func (w *Writer) Run(ctx context.Context, event uint64) error {
	w.mu.Lock()
	rows := w.pending
	w.pending = nil
	w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("simflow: archive %q: begin transaction: %w", w.Name(), err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO messages (event, message_type, channel, detector, payload)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("simflow: archive %q: prepare insert: %w", w.Name(), err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(int64(event), string(r.msgType), r.channel, r.detector, r.payload); err != nil {
			return fmt.Errorf("simflow: archive %q: insert message: %w", w.Name(), err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO events (event, messages) VALUES (?, ?)`, int64(event), len(rows)); err != nil {
		return fmt.Errorf("simflow: archive %q: insert event: %w", w.Name(), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("simflow: archive %q: commit event %d: %w", w.Name(), event, err)
	}

	w.eventsWritten++
	w.messagesWritten += uint64(len(rows))
	return nil
}

// Finalize reports the written totals and closes the database.
func (w *Writer) Finalize() error {
	w.log.Info("archive finished", loggingpkg.LogFields{
		"archive":  w.Name(),
		"events":   w.eventsWritten,
		"messages": w.messagesWritten,
	})
	return w.db.Close()
}

// EventsWritten returns how many events rows the writer has committed.
func (w *Writer) EventsWritten() uint64 { return w.eventsWritten }

// MessagesWritten returns how many message rows the writer has committed.
func (w *Writer) MessagesWritten() uint64 { return w.messagesWritten }

// DB exposes the underlying handle for ad-hoc queries against an archive.
func (w *Writer) DB() *sql.DB { return w.db }
