package checklist

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultNoteSaveDelay = 350 * time.Millisecond

type noteSetter interface {
	SetNote(ctx context.Context, date, text string) error
}

// NoteSaver debounces free-text note writes: rapid successive edits of the
// same day coalesce into a single write of the latest value once the delay
// elapses. Each day has its own independent timer, so overlapping edits of
// different days can never write into the wrong day. A pending write is never
// silently dropped - switching away from a day flushes it, and Close flushes
// everything left.
type NoteSaver struct {
	repo  noteSetter
	delay time.Duration

	mutex   sync.Mutex
	pending map[string]*pendingNote
}

type pendingNote struct {
	timer *time.Timer
	text  string
}

func NewNoteSaver(repo noteSetter, delay time.Duration) *NoteSaver {
	if delay <= 0 {
		delay = DefaultNoteSaveDelay
	}
	return &NoteSaver{
		repo:    repo,
		delay:   delay,
		pending: make(map[string]*pendingNote),
	}
}

// Save schedules text to be persisted for date, replacing any not yet
// persisted value for the same date and restarting its timer.
func (saver *NoteSaver) Save(date, text string) {
	saver.mutex.Lock()
	defer saver.mutex.Unlock()

	if p, ok := saver.pending[date]; ok {
		p.text = text
		p.timer.Reset(saver.delay)
		return
	}

	saver.pending[date] = &pendingNote{
		text: text,
		timer: time.AfterFunc(saver.delay, func() {
			saver.flush(date)
		}),
	}
}

// Flush persists the pending note of date immediately, if there is one.
func (saver *NoteSaver) Flush(date string) {
	saver.flush(date)
}

// Close flushes every pending note. Used on shutdown so scheduled writes at
// least get attempted.
func (saver *NoteSaver) Close() {
	saver.mutex.Lock()
	dates := make([]string, 0, len(saver.pending))
	for date := range saver.pending {
		dates = append(dates, date)
	}
	saver.mutex.Unlock()

	for _, date := range dates {
		saver.flush(date)
	}
}

func (saver *NoteSaver) flush(date string) {
	saver.mutex.Lock()
	p, ok := saver.pending[date]
	if ok {
		p.timer.Stop()
		delete(saver.pending, date)
	}
	saver.mutex.Unlock()

	if !ok {
		// already flushed by the timer or an explicit flush
		return
	}

	if err := saver.repo.SetNote(context.Background(), date, p.text); err != nil {
		log.Errorf("failed to save note for %s: %s", date, err)
	}
}
