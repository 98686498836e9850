// Package goch is an in-process fan-out broker built on Go channels.
package goch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"travelbook/mq/mq"
)

// fanOutQueueCore copies every published item to every subscriber. A
// subscriber whose buffer is full misses the item; the publisher never
// waits on a subscriber.
type fanOutQueueCore[T any] struct {
	publishChan chan T
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan T
	quit        chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	bufferSize  int
}

func newFanOutQueueCore[T any](bufferSize int) *fanOutQueueCore[T] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	core := &fanOutQueueCore[T]{
		publishChan: make(chan T, bufferSize),
		subscribers: make(map[uuid.UUID]chan T),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
	go core.fanOutRoutine()
	return core
}

func (c *fanOutQueueCore[T]) fanOutRoutine() {
	defer close(c.done)
	for {
		select {
		case item := <-c.publishChan:
			c.mu.RLock()
			for id, ch := range c.subscribers {
				select {
				case ch <- item:
				default:
					slog.Warn("subscriber is full, dropping message", "subscriber", id)
				}
			}
			c.mu.RUnlock()
		case <-c.quit:
			return
		}
	}
}

// Publish hands item to the fan-out routine without blocking.
func (c *fanOutQueueCore[T]) Publish(item T) error {
	select {
	case <-c.quit:
		return mq.ErrQueueStopped
	default:
	}
	select {
	case c.publishChan <- item:
		return nil
	case <-c.quit:
		return mq.ErrQueueStopped
	default:
		return mq.ErrQueueFull
	}
}

func (c *fanOutQueueCore[T]) Subscribe() (uuid.UUID, <-chan T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.quit:
		return uuid.Nil, nil, mq.ErrQueueStopped
	default:
	}
	id := uuid.New()
	// subscribers always get some slack so a fast publisher does not starve them
	ch := make(chan T, max(c.bufferSize, 16))
	c.subscribers[id] = ch
	return id, ch, nil
}

func (c *fanOutQueueCore[T]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber %s not found", id)
	}
	delete(c.subscribers, id)
	close(ch)
	return nil
}

// Stop ends the fan-out routine and closes every subscriber channel.
func (c *fanOutQueueCore[T]) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		<-c.done
		c.mu.Lock()
		defer c.mu.Unlock()
		for id, ch := range c.subscribers {
			close(ch)
			delete(c.subscribers, id)
		}
	})
}

// ChannelOrderMessageQueue implements mq.OrderMessageQueue in process.
type ChannelOrderMessageQueue struct {
	core *fanOutQueueCore[mq.OrderMessage]
}

// NewChannelOrderMessageQueue creates a new instance of ChannelOrderMessageQueue.
// bufferSize determines the capacity of the publish channel. A bufferSize of 0 means unbuffered.
func NewChannelOrderMessageQueue(bufferSize int) *ChannelOrderMessageQueue {
	return &ChannelOrderMessageQueue{core: newFanOutQueueCore[mq.OrderMessage](bufferSize)}
}

// Publish sends an OrderMessage to every current subscriber.
func (q *ChannelOrderMessageQueue) Publish(_ context.Context, msg mq.OrderMessage) error {
	return q.core.Publish(msg)
}

// Subscribe returns a read-only channel for OrderMessages.
func (q *ChannelOrderMessageQueue) Subscribe() (uuid.UUID, <-chan mq.OrderMessage, error) {
	return q.core.Subscribe()
}

func (q *ChannelOrderMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

func (q *ChannelOrderMessageQueue) Stop() {
	q.core.Stop()
}
