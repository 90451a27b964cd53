package storage

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/holdings_agent/internal/session"
)

var (
	ErrJournalClosed = errors.New("journal is closed")
	ErrJournalFull   = errors.New("journal buffer full")
)

// Journal appends session transitions as JSON lines to date-organized files:
// baseDir/YYYY-MM-DD/transitions.jsonl. Writes are queued and never block
// the session controller.
type Journal struct {
	baseDir     string
	maxSizeMB   int
	writeCh     chan session.Transition
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	currentDate string
	logger      *lumberjack.Logger
	mu          sync.Mutex
}

// NewJournal starts the background writer.
func NewJournal(baseDir string, bufferSize, maxSizeMB int) *Journal {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	j := &Journal{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan session.Transition, bufferSize),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// SessionChanged records t.
func (j *Journal) SessionChanged(t session.Transition) {
	if err := j.Write(t); err != nil {
		slog.Warn("session journal dropped transition", "to", t.To, "error", err)
	}
}

// Write queues a transition.
func (j *Journal) Write(t session.Transition) error {
	select {
	case <-j.done:
		return ErrJournalClosed
	default:
	}
	select {
	case j.writeCh <- t:
		return nil
	default:
		return ErrJournalFull
	}
}

// Close stops the writer and flushes queued transitions.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() { close(j.done) })
	j.wg.Wait()

	timeout := time.After(5 * time.Second)
drain:
	for {
		select {
		case t := <-j.writeCh:
			j.writeRecord(t)
		case <-timeout:
			slog.Warn("session journal close timeout, some transitions may be lost", "dir", j.baseDir)
			break drain
		default:
			break drain
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		err := j.logger.Close()
		j.logger = nil
		return err
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case t := <-j.writeCh:
			j.writeRecord(t)
		case <-j.done:
			return
		}
	}
}

func (j *Journal) writeRecord(t session.Transition) {
	data, err := json.Marshal(t)
	if err != nil {
		slog.Error("failed to marshal transition", "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := time.Now().UTC().Format("2006-01-02")
	if j.logger == nil || date != j.currentDate {
		if !j.rotateForDate(date) {
			return
		}
	}

	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write transition", "error", err)
	}
}

func (j *Journal) rotateForDate(date string) bool {
	if j.logger != nil {
		if err := j.logger.Close(); err != nil {
			slog.Debug("session journal close failed", "error", err)
		}
		j.logger = nil
	}

	dir := filepath.Join(j.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("failed to create journal directory", "dir", dir, "error", err)
		return false
	}

	filename := filepath.Join(dir, "transitions.jsonl")
	j.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    j.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	j.currentDate = date
	slog.Info("opened session journal", "file", filename)
	return true
}
