package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangadownloader/shared/application/ports"
)

// Settlement actions recorded by MemoryBroker.
const (
	ActionAck     = "ack"
	ActionRequeue = "requeue"
	ActionDrop    = "drop"
	ActionReject  = "reject"
)

// Settlement records how a delivery was settled.
type Settlement struct {
	ID     string
	Action string
}

type memoryQueue struct {
	spec    ports.QueueSpec
	pending []ports.Delivery
	notify  chan struct{}
}

// MemoryBroker is an in-process broker for local runs and tests. Like a
// prefetch-1 AMQP consumer it hands out the next delivery only once the
// previous one is settled.
type MemoryBroker struct {
	mu          sync.Mutex
	connected   bool
	nextTag     uint64
	queues      map[string]*memoryQueue
	inflight    map[uint64]ports.Delivery
	settlements []Settlement
	settled     chan struct{}
	shutdown    chan struct{}
	closeOnce   sync.Once
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues:   make(map[string]*memoryQueue),
		inflight: make(map[uint64]ports.Delivery),
		settled:  make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
}

func (b *MemoryBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *MemoryBroker) DeclareQueue(ctx context.Context, spec ports.QueueSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return fmt.Errorf("memory broker is not connected")
	}
	if q, ok := b.queues[spec.Name]; ok {
		q.spec = spec
		return nil
	}
	b.queues[spec.Name] = &memoryQueue{spec: spec, notify: make(chan struct{}, 1)}
	return nil
}

// Spec returns the declaration of a queue, if any.
func (b *MemoryBroker) Spec(queue string) (ports.QueueSpec, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[queue]
	if !ok {
		return ports.QueueSpec{}, false
	}
	return q.spec, true
}

func (b *MemoryBroker) Consume(ctx context.Context, queue string) (<-chan ports.Delivery, error) {
	b.mu.Lock()
	q, ok := b.queues[queue]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("queue %s is not declared", queue)
	}

	out := make(chan ports.Delivery)
	go func() {
		defer close(out)
		for {
			d, ok := b.pop(q)
			if !ok {
				select {
				case <-q.notify:
					continue
				case <-b.shutdown:
					return
				case <-ctx.Done():
					return
				}
			}

			select {
			case out <- d:
			case <-b.shutdown:
				b.unpop(q, d)
				return
			case <-ctx.Done():
				b.unpop(q, d)
				return
			}

			select {
			case <-b.settled:
			case <-b.shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (b *MemoryBroker) Ack(ctx context.Context, d ports.Delivery) error {
	return b.settle(d, ActionAck)
}

func (b *MemoryBroker) Nack(ctx context.Context, d ports.Delivery, requeue bool) error {
	if !requeue {
		return b.settle(d, ActionDrop)
	}
	return b.settle(d, ActionRequeue)
}

func (b *MemoryBroker) Reject(ctx context.Context, d ports.Delivery) error {
	return b.settle(d, ActionReject)
}

// Publish appends a message to the named queue, declaring it durable when
// it does not exist yet.
func (b *MemoryBroker) Publish(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	q, ok := b.queues[queue]
	if !ok {
		q = &memoryQueue{
			spec:   ports.QueueSpec{Name: queue, Durable: true},
			notify: make(chan struct{}, 1),
		}
		b.queues[queue] = q
	}
	b.nextTag++
	q.pending = append(q.pending, ports.Delivery{
		ID:        uuid.NewString(),
		Tag:       b.nextTag,
		Body:      append([]byte(nil), body...),
		Timestamp: time.Now().UTC(),
		Headers:   map[string]string{"queue": queue},
	})
	b.mu.Unlock()

	wake(q.notify)
	return nil
}

// Shutdown simulates a lost connection: every delivery channel is closed.
func (b *MemoryBroker) Shutdown() {
	b.closeOnce.Do(func() { close(b.shutdown) })
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

// Settlements returns the settlement log in order.
func (b *MemoryBroker) Settlements() []Settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Settlement(nil), b.settlements...)
}

// Pending returns the number of deliveries waiting in queue.
func (b *MemoryBroker) Pending(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return len(q.pending)
	}
	return 0
}

func (b *MemoryBroker) pop(q *memoryQueue) (ports.Delivery, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(q.pending) == 0 {
		return ports.Delivery{}, false
	}
	d := q.pending[0]
	q.pending = q.pending[1:]
	b.inflight[d.Tag] = d
	return d, true
}

// unpop returns a delivery that was never handed out to the head of q.
func (b *MemoryBroker) unpop(q *memoryQueue, d ports.Delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, d.Tag)
	q.pending = append([]ports.Delivery{d}, q.pending...)
}

func (b *MemoryBroker) settle(d ports.Delivery, action string) error {
	b.mu.Lock()
	held, ok := b.inflight[d.Tag]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("delivery %d is not in flight", d.Tag)
	}
	delete(b.inflight, d.Tag)
	b.settlements = append(b.settlements, Settlement{ID: held.ID, Action: action})

	var requeued *memoryQueue
	if action == ActionRequeue {
		if q, ok := b.queues[held.Headers["queue"]]; ok {
			held.Redelivered = true
			q.pending = append([]ports.Delivery{held}, q.pending...)
			requeued = q
		}
	}
	b.mu.Unlock()

	if requeued != nil {
		wake(requeued.notify)
	}
	wake(b.settled)
	return nil
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
