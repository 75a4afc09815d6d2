// Package bus implements job handoff over Redis Streams: a primary work
// queue consumed through a consumer group, plus a parallel dead-letter
// stream for jobs that exhausted their retry budget.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/croutons-ai/precog/internal/domain/model"
)

// payloadField is the stream entry field carrying the encoded job.
const payloadField = "payload"

// Options groups parameters for NewBus.
type Options struct {
	Client    redis.UniversalClient
	Stream    string
	DLQStream string
	Group     string
	Logger    *slog.Logger
}

// Bus is the replicated-log job queue.
type Bus struct {
	client    redis.UniversalClient
	stream    string
	dlqStream string
	group     string
	logger    *slog.Logger
}

// NewBus creates a Bus over the given Redis client.
func NewBus(opts Options) (*Bus, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Stream == "" || opts.DLQStream == "" || opts.Group == "" {
		return nil, errors.New("stream, dlq stream, and group names are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		client:    opts.Client,
		stream:    opts.Stream,
		dlqStream: opts.DLQStream,
		group:     opts.Group,
		logger:    logger.With("component", "bus"),
	}, nil
}

// ConsumerName derives a unique consumer name for this process.
func ConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return fmt.Sprintf("worker-%s-%d", host, os.Getpid())
}

// EnsureGroup creates the consumer group on the primary stream, creating the
// stream itself if needed. Safe to call on every startup.
func (b *Bus) EnsureGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.stream, b.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Enqueue appends a job to the primary stream and returns the message id.
func (b *Bus) Enqueue(ctx context.Context, job model.QueuedJob) (string, error) {
	encoded, err := job.Encode()
	if err != nil {
		return "", err
	}
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{payloadField: encoded},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", job.JobID, err)
	}
	return id, nil
}

// Message is one claimed stream entry.
type Message struct {
	ID  string
	Job model.QueuedJob
}

// ReadGroup blocks up to the configured timeout for at most count new
// messages, claiming them for the named consumer. A timeout with no messages
// returns an empty slice and no error. Entries with undecodable payloads are
// acked and dropped so they cannot wedge the group.
func (b *Bus) ReadGroup(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error) {
	if block <= 0 {
		block = time.Millisecond // effectively non-blocking
	}
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: consumer,
		Streams:  []string{b.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read group: %w", err)
	}

	var msgs []Message
	for _, s := range streams {
		for _, entry := range s.Messages {
			raw, _ := entry.Values[payloadField].(string)
			job, decodeErr := model.DecodeQueuedJob(raw)
			if decodeErr != nil {
				b.logger.ErrorContext(ctx, "dropping undecodable stream entry",
					"stream", b.stream, "entry_id", entry.ID, "error", decodeErr)
				if ackErr := b.Ack(ctx, entry.ID); ackErr != nil {
					b.logger.ErrorContext(ctx, "failed to ack poison entry",
						"entry_id", entry.ID, "error", ackErr)
				}
				continue
			}
			msgs = append(msgs, Message{ID: entry.ID, Job: job})
		}
	}
	return msgs, nil
}

// Reclaim transfers ownership of up to count messages that have sat unacked
// for at least minIdle to the named consumer, scanning from start ("0-0" for
// the beginning). Returns the claimed messages and the cursor for the next
// scan. Undecodable entries are acked and dropped, same as ReadGroup.
func (b *Bus) Reclaim(ctx context.Context, consumer string, minIdle time.Duration, start string, count int64) ([]Message, string, error) {
	if start == "" {
		start = "0-0"
	}
	entries, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.stream,
		Group:    b.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    start,
		Count:    count,
	}).Result()
	if err != nil {
		return nil, start, fmt.Errorf("reclaim: %w", err)
	}

	var msgs []Message
	for _, entry := range entries {
		raw, _ := entry.Values[payloadField].(string)
		job, decodeErr := model.DecodeQueuedJob(raw)
		if decodeErr != nil {
			b.logger.ErrorContext(ctx, "dropping undecodable reclaimed entry",
				"stream", b.stream, "entry_id", entry.ID, "error", decodeErr)
			if ackErr := b.Ack(ctx, entry.ID); ackErr != nil {
				b.logger.ErrorContext(ctx, "failed to ack poison entry",
					"entry_id", entry.ID, "error", ackErr)
			}
			continue
		}
		msgs = append(msgs, Message{ID: entry.ID, Job: job})
	}
	return msgs, next, nil
}

// Ack removes the pending marker for a claimed message.
func (b *Bus) Ack(ctx context.Context, id string) error {
	if err := b.client.XAck(ctx, b.stream, b.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

// WriteDLQ appends a dead-letter record carrying the original payload plus
// the terminal error.
func (b *Bus) WriteDLQ(ctx context.Context, dl model.DeadLetter) (string, error) {
	encoded, err := json.Marshal(dl)
	if err != nil {
		return "", fmt.Errorf("encode dead letter: %w", err)
	}
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.dlqStream,
		Values: map[string]any{payloadField: string(encoded)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("write dead letter for %s: %w", dl.JobID, err)
	}
	return id, nil
}

// DeadLetterEntry pairs a DLQ record with its stream id.
type DeadLetterEntry struct {
	ID     string
	Record model.DeadLetter
}

// ReadDLQ returns up to count dead letters from the start of the DLQ stream.
func (b *Bus) ReadDLQ(ctx context.Context, count int64) ([]DeadLetterEntry, error) {
	entries, err := b.client.XRangeN(ctx, b.dlqStream, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read dlq: %w", err)
	}

	var out []DeadLetterEntry
	for _, entry := range entries {
		raw, _ := entry.Values[payloadField].(string)
		var rec model.DeadLetter
		if decodeErr := json.Unmarshal([]byte(raw), &rec); decodeErr != nil {
			b.logger.Error("skipping undecodable dead letter", "entry_id", entry.ID, "error", decodeErr)
			continue
		}
		out = append(out, DeadLetterEntry{ID: entry.ID, Record: rec})
	}
	return out, nil
}

// RequeueDLQ re-enqueues a dead letter on the primary stream and deletes it
// from the DLQ. Returns the new primary stream id.
func (b *Bus) RequeueDLQ(ctx context.Context, entry DeadLetterEntry) (string, error) {
	id, err := b.Enqueue(ctx, model.QueuedJob{
		JobID:   entry.Record.JobID,
		Precog:  entry.Record.Precog,
		Task:    entry.Record.Task,
		Context: entry.Record.Context,
	})
	if err != nil {
		return "", err
	}
	if delErr := b.client.XDel(ctx, b.dlqStream, entry.ID).Err(); delErr != nil {
		return id, fmt.Errorf("delete requeued dead letter %s: %w", entry.ID, delErr)
	}
	return id, nil
}

// DropDLQ removes a dead-letter entry without requeueing it.
func (b *Bus) DropDLQ(ctx context.Context, id string) error {
	if err := b.client.XDel(ctx, b.dlqStream, id).Err(); err != nil {
		return fmt.Errorf("drop dead letter %s: %w", id, err)
	}
	return nil
}

// Info summarizes stream state for operators and health checks.
type Info struct {
	StreamLength    int64  `json:"stream_length"`
	DLQLength       int64  `json:"dlq_length"`
	PendingCount    int64  `json:"pending_count"`
	PendingConsumer string `json:"pending_consumers,omitempty"`
}

// PendingInfo reports stream lengths and the group's pending entry count.
func (b *Bus) PendingInfo(ctx context.Context) (*Info, error) {
	info := &Info{}

	var err error
	if info.StreamLength, err = b.client.XLen(ctx, b.stream).Result(); err != nil {
		return nil, fmt.Errorf("stream length: %w", err)
	}
	if info.DLQLength, err = b.client.XLen(ctx, b.dlqStream).Result(); err != nil {
		return nil, fmt.Errorf("dlq length: %w", err)
	}

	pending, err := b.client.XPending(ctx, b.stream, b.group).Result()
	if err != nil {
		// A group that was never created has nothing pending.
		if strings.Contains(err.Error(), "NOGROUP") {
			return info, nil
		}
		return nil, fmt.Errorf("pending info: %w", err)
	}
	info.PendingCount = pending.Count
	if len(pending.Consumers) > 0 {
		names := make([]string, 0, len(pending.Consumers))
		for name := range pending.Consumers {
			names = append(names, name)
		}
		info.PendingConsumer = strings.Join(names, ",")
	}
	return info, nil
}

// Ping verifies bus connectivity.
func (b *Bus) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping bus: %w", err)
	}
	return nil
}
