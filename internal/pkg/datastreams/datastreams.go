// Package datastreams moves run events from the planner publisher to the
// configured sinks. Each sink runs in its own Handler process.
package datastreams

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
)

// Writer is a sink for run events.
type Writer interface {
	Name() string
	Write(ctx context.Context, m msg.Msg) error
	Close(ctx context.Context) error
}

// DefaultTimeout bounds a single Write.
const DefaultTimeout = 30 * time.Second

// Handler pulls messages for its topics off a publisher and hands them to a
// Writer, one at a time.
type Handler struct {
	pid     uuid.UUID
	writer  Writer
	pub     msg.Publisher
	inbox   chan msg.Msg
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
	log     logr.Logger
	Timeout time.Duration

	mux    sync.Mutex
	failed int
}

// New subscribes a handler for w to every topic.
func New(w Writer, pub msg.Publisher, log logr.Logger, topics ...msg.Topic) (*Handler, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		pid:     pid,
		writer:  w,
		pub:     pub,
		inbox:   make(chan msg.Msg, msg.SubscriberBuffer),
		done:    make(chan struct{}),
		log:     log.WithName(w.Name()),
		Timeout: DefaultTimeout,
	}
	for _, topic := range topics {
		ch, err := pub.Subscribe(pid, topic)
		if err != nil {
			pub.Unsubscribe(pid)
			return nil, err
		}
		h.wg.Add(1)
		go h.redirectMsg(ch)
	}
	return h, nil
}

// PID is the handler's subscriber id.
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

func (h *Handler) redirectMsg(chIn <-chan msg.Msg) {
	defer h.wg.Done()
	for m := range chIn {
		h.inbox <- m
	}
}

// Process writes messages until Stop is called and the inbox is drained.
func (h *Handler) Process() {
	h.log.V(1).Info("process started")
	for m := range h.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
		if err := h.writer.Write(ctx, m); err != nil {
			h.mux.Lock()
			h.failed++
			h.mux.Unlock()
			h.log.Error(err, "write failed", "topic", m.Topic().String())
		}
		cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	if err := h.writer.Close(ctx); err != nil {
		h.log.Error(err, "close failed")
	}
	h.log.V(1).Info("process shutdown")
	close(h.done)
}

// Stop unsubscribes, lets Process drain what was already published and
// waits for it to return. Process must be running.
func (h *Handler) Stop() {
	h.once.Do(func() {
		h.pub.Unsubscribe(h.pid)
		h.wg.Wait()
		close(h.inbox)
	})
	<-h.done
}

// Failed counts writes that returned an error.
func (h *Handler) Failed() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.failed
}
