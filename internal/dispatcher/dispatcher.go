// Package dispatcher 把入站消息分发给按用户分片的串行 worker。
// 同一用户的消息总是落在同一个分片上，因此按到达顺序逐条处理；不同用户可以并行。
// 回复交给独立的发送分片异步发出，慢速发送不会拖住其他用户的处理。
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"quiz-bot-go/internal/quiz"
	"quiz-bot-go/internal/transport"
	"quiz-bot-go/pkg/log"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrStopped 表示 dispatcher 已经停止，不再接受新的工作。
var ErrStopped = errors.New("dispatcher stopped")

// Handler 处理一条用户消息并返回回复，由 service.QuizEngine 实现。
type Handler interface {
	HandleMessage(ctx context.Context, userKey, text string) string
}

// Deduplicator 记录已处理的消息 ID，由 repository.DedupRepository 实现。
type Deduplicator interface {
	MarkSeen(ctx context.Context, messageID string) (bool, error)
}

// Config 是 dispatcher 的参数。
type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type job struct {
	msg  transport.InboundMessage
	fn   func(ctx context.Context)
	done chan struct{}
}

type outbound struct {
	userID string
	text   string
}

// Dispatcher 实现 transport.Inbound 和 service.Serializer。
type Dispatcher struct {
	handler Handler
	sender  transport.Sender
	dedup   Deduplicator
	cfg     Config

	shards  []chan job
	outbox  []chan outbound
	stopped chan struct{}
	stop    sync.Once
}

// New 创建一个 Dispatcher。dedup 可以为 nil。调用 Run 之后才会开始处理。
func New(handler Handler, sender transport.Sender, dedup Deduplicator, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		handler: handler,
		sender:  sender,
		dedup:   dedup,
		cfg:     cfg,
		shards:  make([]chan job, cfg.Workers),
		outbox:  make([]chan outbound, cfg.Workers),
		stopped: make(chan struct{}),
	}
	for i := range d.shards {
		d.shards[i] = make(chan job, cfg.QueueSize)
		d.outbox[i] = make(chan outbound, cfg.QueueSize)
	}
	return d
}

func (d *Dispatcher) shardFor(userKey string) int {
	return int(xxhash.Sum64String(userKey) % uint64(len(d.shards)))
}

// Run 启动处理与发送 worker，阻塞到 ctx 被取消后全部退出。
// 停止时尚在队列中的消息会被丢弃。
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range d.shards {
		wg.Add(2)
		go func(in chan job) {
			defer wg.Done()
			d.processLoop(ctx, in)
		}(d.shards[i])
		go func(out chan outbound) {
			defer wg.Done()
			d.sendLoop(ctx, out)
		}(d.outbox[i])
	}
	log.Infof("dispatcher 已启动，分片数: %d", len(d.shards))

	<-ctx.Done()
	d.stop.Do(func() { close(d.stopped) })
	wg.Wait()
	log.Info("dispatcher 已停止")
	return nil
}

// Submit 把一条入站消息排进该用户的分片。已经处理过的消息 ID 会被丢弃。
// 分片队列满时阻塞，直到有空位、ctx 被取消或 dispatcher 停止。
func (d *Dispatcher) Submit(ctx context.Context, msg transport.InboundMessage) error {
	if msg.ID != "" && d.dedup != nil {
		first, err := d.dedup.MarkSeen(ctx, msg.ID)
		if err != nil {
			// 去重只是优化，Redis 不可用时照常处理。
			log.Warnw("入站消息去重不可用", "message_id", msg.ID, "error", err)
		} else if !first {
			log.Infow("丢弃重复的入站消息", "message_id", msg.ID, "user", msg.UserID)
			return nil
		}
	}
	return d.enqueue(ctx, msg.UserID, job{msg: msg})
}

// Do 在该用户的分片上执行 fn，并等待它执行完毕。
func (d *Dispatcher) Do(ctx context.Context, userKey string, fn func(ctx context.Context)) error {
	j := job{msg: transport.InboundMessage{UserID: userKey}, fn: fn, done: make(chan struct{})}
	if err := d.enqueue(ctx, userKey, j); err != nil {
		return err
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, userKey string, j job) error {
	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}
	select {
	case d.shards[d.shardFor(userKey)] <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
}

func (d *Dispatcher) processLoop(ctx context.Context, in chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-in:
			d.run(ctx, j)
		}
	}
}

// run 执行单个任务。处理过程中的 panic 只影响这一条消息：
// 消息任务回复致歉文案，Do 任务照常通知等待方，分片 worker 继续运行。
func (d *Dispatcher) run(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("消息处理发生 panic", "user", j.msg.UserID, "panic", fmt.Sprint(r))
			if j.fn == nil {
				d.deliver(j.msg.UserID, quiz.MsgApology)
			}
		}
		if j.done != nil {
			close(j.done)
		}
	}()

	if j.fn != nil {
		j.fn(ctx)
		return
	}
	reply := d.handler.HandleMessage(ctx, j.msg.UserID, j.msg.Text)
	if reply != "" {
		d.deliver(j.msg.UserID, reply)
	}
}

// deliver 把回复放进发送队列，不阻塞处理 worker；队列满时丢弃并记录。
func (d *Dispatcher) deliver(userID, text string) {
	select {
	case d.outbox[d.shardFor(userID)] <- outbound{userID: userID, text: text}:
	default:
		log.Warnw("发送队列已满，丢弃回复", "user", userID)
	}
}

func (d *Dispatcher) sendLoop(ctx context.Context, out chan outbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-out:
			sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
			if err := d.sender.Send(sendCtx, o.userID, o.text); err != nil {
				log.Warnw("发送回复失败", "user", o.userID, "error", err)
			}
			cancel()
		}
	}
}
