package notify

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const changesChannel = "trainingplan:checklist:changed"

// Bridge propagates completion-store changes between service instances
// sharing the same redis store, so every surface reflects the latest state.
// There is no payload beyond "something changed" - the message carries only
// the writer's instance ID, and consumers re-derive their aggregates instead
// of trusting a delta. Notifications from our own instance are skipped: own
// writes refresh through the normal local update flow, not through here.
type Bridge struct {
	rdb        *redis.Client
	instanceID string

	mutex       sync.Mutex
	nextSubID   int
	subscribers map[int]func()

	pubsub *redis.PubSub
	done   chan struct{}
}

func NewBridge(rdb *redis.Client) *Bridge {
	return &Bridge{
		rdb:         rdb,
		instanceID:  uuid.NewString(),
		subscribers: make(map[int]func()),
	}
}

func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Start opens the pub/sub subscription and dispatches incoming change
// notifications until Close is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.pubsub = b.rdb.Subscribe(ctx, changesChannel)

	// force the subscription to be established before we return
	if _, err := b.pubsub.Receive(ctx); err != nil {
		return err
	}

	b.done = make(chan struct{})
	messages := b.pubsub.Channel()
	go func() {
		defer close(b.done)
		for msg := range messages {
			b.dispatch(msg.Payload)
		}
	}()

	return nil
}

// NotifyChanged announces a completed write to all other instances. A failed
// publish only means remote views refresh later - it is logged, not fatal.
func (b *Bridge) NotifyChanged(ctx context.Context) {
	if err := b.rdb.Publish(ctx, changesChannel, b.instanceID).Err(); err != nil {
		log.Errorf("failed to publish change notification: %s", err)
	}
}

// Subscribe registers fn to run on every external change. The returned
// function unsubscribes; it must be called on teardown so no dangling
// handler outlives its view.
func (b *Bridge) Subscribe(fn func()) (unsubscribe func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = fn

	return func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		delete(b.subscribers, id)
	}
}

func (b *Bridge) Close() error {
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	<-b.done
	return err
}

// dispatch fans a change notification out to the subscribers, skipping
// notifications that originated from this very instance.
func (b *Bridge) dispatch(origin string) {
	if origin == b.instanceID {
		return
	}

	b.mutex.Lock()
	fns := make([]func(), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		fns = append(fns, fn)
	}
	b.mutex.Unlock()

	for _, fn := range fns {
		fn()
	}
}
