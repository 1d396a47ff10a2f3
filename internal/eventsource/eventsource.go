// Package eventsource wraps the store's LISTEN/NOTIFY channels (spec.md
// §4.2) into a lazy, restartable sequence of typed events. pgx's own
// conn.WaitForNotification is the idiomatic Go analogue of the Rust
// runtime's reliance on Postgres LISTEN; no new SQL driver dependency is
// introduced (pgx/v5 is already used throughout internal/store).
package eventsource

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// channelBacklog bounds the buffered-channel backlog between the listener
// goroutine and consumers. Once it is full, emit drops the incoming event
// and the oldest buffered one and queues a Lagged sentinel in the freed
// slot, per spec.md §4.2's restartable-sequence requirement.
const channelBacklog = 256

var channels = []string{
	"durable:task",
	"durable:task-suspend",
	"durable:task-complete",
	"durable:notification",
	"durable:worker",
	"durable:log",
}

// Kind tags the typed events produced by Source.
type Kind int

const (
	KindTaskReady Kind = iota
	KindTaskSuspended
	KindTaskCompleted
	KindNotificationArrived
	KindWorkerChanged
	KindLogAppended
	KindLagged
)

// Event is a typed notification payload, or the Lagged sentinel with all
// other fields zero.
type Event struct {
	Kind Kind

	TaskID    int64
	RunningOn *int64
	State     string
	Event     string
	WorkerID  int64
	Index     int32
}

// Source owns one dedicated *pgx.Conn — LISTEN pins a connection for the
// session, so it cannot be borrowed from the shared pool — and fans
// payloads out over a buffered channel.
type Source struct {
	connString string
	log        zerolog.Logger

	out chan Event
}

// New constructs a Source. Call Run to start listening; Run blocks until
// ctx is cancelled, reconnecting on connection loss.
func New(connString string, log zerolog.Logger) *Source {
	return &Source{
		connString: connString,
		log:        log.With().Str("component", "eventsource").Logger(),
		out:        make(chan Event, channelBacklog),
	}
}

// Events returns the channel downstream loops consume from.
func (s *Source) Events() <-chan Event {
	return s.out
}

// Run listens until ctx is done, reconnecting with backoff on any
// connection failure and emitting a Lagged event immediately after each
// reconnect (messages may have been missed while disconnected).
func (s *Source) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	reconnect := false

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.runOnce(ctx, reconnect)
		reconnect = true
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.log.Warn().Err(err).Dur("backoff", backoff).Msg("event source connection lost, reconnecting")
		}

		s.emit(Event{Kind: KindLagged})

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Source) runOnce(ctx context.Context, reconnect bool) error {
	conn, err := pgx.Connect(ctx, s.connString)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	for _, ch := range channels {
		if _, err := conn.Exec(ctx, `LISTEN "`+ch+`"`); err != nil {
			return err
		}
	}
	if reconnect {
		// Anything published while no LISTEN was active was missed.
		s.emit(Event{Kind: KindLagged})
	}
	for {
		notif, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		evt, ok := parsePayload(notif.Channel, notif.Payload)
		if !ok {
			s.log.Warn().Str("channel", notif.Channel).Str("payload", notif.Payload).Msg("unrecognized notification payload")
			continue
		}
		s.emit(evt)
	}
}

func (s *Source) emit(evt Event) {
	select {
	case s.out <- evt:
	default:
		// Backlog full: drop it and make sure a Lagged sentinel is visible,
		// per spec.md §4.2 — downstream loops must conservatively rescan
		// rather than trust a partial event stream. Only Run's goroutine
		// sends on s.out, so discarding the oldest buffered event frees a
		// slot the Lagged send is guaranteed to take.
		select {
		case <-s.out:
		default:
		}
		select {
		case s.out <- Event{Kind: KindLagged}:
		default:
		}
	}
}

func parsePayload(channel, payload string) (Event, bool) {
	switch channel {
	case "durable:task":
		var p struct {
			ID        int64  `json:"id"`
			RunningOn *int64 `json:"running_on"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindTaskReady, TaskID: p.ID, RunningOn: p.RunningOn}, true
	case "durable:task-suspend":
		var p struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindTaskSuspended, TaskID: p.ID}, true
	case "durable:task-complete":
		var p struct {
			ID    int64  `json:"id"`
			State string `json:"state"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindTaskCompleted, TaskID: p.ID, State: p.State}, true
	case "durable:notification":
		var p struct {
			TaskID int64  `json:"task_id"`
			Event  string `json:"event"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindNotificationArrived, TaskID: p.TaskID, Event: p.Event}, true
	case "durable:worker":
		var p struct {
			WorkerID int64 `json:"worker_id"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindWorkerChanged, WorkerID: p.WorkerID}, true
	case "durable:log":
		var p struct {
			TaskID int64 `json:"task_id"`
			Index  int32 `json:"index"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindLogAppended, TaskID: p.TaskID, Index: p.Index}, true
	default:
		return Event{}, false
	}
}
