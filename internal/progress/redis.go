package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/pkg/logger"
)

// Publisher is the part of *redis.Client the publisher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher sends progress events to <channel>:<job id>. Publishing
// happens on a background goroutine; when it falls behind, updates are
// dropped rather than slowing the render.
type RedisPublisher struct {
	client  Publisher
	channel string
	log     *logger.Logger
	timeout time.Duration

	events chan Event
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewRedisPublisher(client Publisher, channel string, log *logger.Logger) *RedisPublisher {
	if channel == "" {
		channel = "daybyday:progress"
	}
	if log == nil {
		log = logger.Discard()
	}
	p := &RedisPublisher{
		client:  client,
		channel: channel,
		log:     log.WithComponent("progress-redis"),
		timeout: 2 * time.Second,
		events:  make(chan Event, 256),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// ForJob implements jobs.ProgressFanout.
func (p *RedisPublisher) ForJob(id string) engine.ProgressSink {
	return engine.ProgressFunc(func(percent float64, label string) {
		p.enqueue(Event{JobID: id, Percent: percent, Label: label, At: time.Now().UTC()})
	})
}

func (p *RedisPublisher) enqueue(ev Event) {
	select {
	case <-p.quit:
	case p.events <- ev:
	default:
		p.log.Debug("progress event dropped", "job_id", ev.JobID, "percent", ev.Percent)
	}
}

func (p *RedisPublisher) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			// Отдаём то, что уже в очереди.
			for {
				select {
				case ev := <-p.events:
					p.publish(ev)
				default:
					return
				}
			}
		case ev := <-p.events:
			p.publish(ev)
		}
	}
}

func (p *RedisPublisher) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.LogError(context.Background(), "progress event not encodable", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel+":"+ev.JobID, data).Err(); err != nil {
		p.log.Warn("progress publish failed", "job_id", ev.JobID, "error", err.Error())
	}
}

// Close flushes queued events and stops the publisher.
func (p *RedisPublisher) Close() {
	p.once.Do(func() { close(p.quit) })
	<-p.done
}
