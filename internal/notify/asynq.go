package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const TypeBookingNotification = "booking:notify"

// Enqueuer is the part of *asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue hands notifications to asynq workers. Delivery retries happen in the worker.
type Queue struct {
	client   Enqueuer
	queue    string
	maxRetry int
}

func NewQueue(client Enqueuer, queue string, maxRetry int) *Queue {
	if queue == "" {
		queue = "default"
	}
	return &Queue{client: client, queue: queue, maxRetry: maxRetry}
}

func NewTask(n Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBookingNotification, payload), nil
}

func (q *Queue) Notify(ctx context.Context, n Notification) error {
	task, err := NewTask(n)
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.maxRetry),
		asynq.TaskID(n.Key()),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", n.Key(), err)
	}
	return nil
}

// Handler delivers queued notifications to sink.
type Handler struct {
	sink Notifier
	log  *slog.Logger
}

func NewHandler(sink Notifier, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{sink: sink, log: log.With(slog.String("component", "notify_worker"))}
}

func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var n Notification
	if err := json.Unmarshal(task.Payload(), &n); err != nil {
		h.log.Error("invalid notification payload", slog.Any("err", err))
		return fmt.Errorf("decode notification: %w: %w", err, asynq.SkipRetry)
	}
	if err := h.sink.Notify(ctx, n); err != nil {
		h.log.Warn("notification delivery failed", slog.String("key", n.Key()), slog.Any("err", err))
		return err
	}
	return nil
}

func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeBookingNotification, h)
	return mux
}
