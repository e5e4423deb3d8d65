package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"notika/backend/internal/pool"
)

// 实时事件名
const (
	EventNewMessage      = "NewMessage"
	EventMessageRead     = "MessageRead"
	EventNewNotification = "NewNotification"
)

// Publisher 按组推送事件（本地 Hub 或 Redis 转发器）
type Publisher interface {
	PublishToGroup(ctx context.Context, group, event string, payload interface{}) error
}

// Recorder 推送结果统计
type Recorder interface {
	RecordPush(event string, err error)
	RecordDropped()
}

// Event 待推送的事件
type Event struct {
	Group   string
	Name    string
	Payload interface{}
}

// Options 通知器配置
type Options struct {
	EnqueueTimeout time.Duration
	PushTimeout    time.Duration
}

// Notifier 出站通知器
//
// 业务写入提交之后才调用 Enqueue；推送在协程池中执行，失败只记录日志，
// 不会影响调用方。没有协程池时直接在调用方协程内推送。
type Notifier struct {
	publisher Publisher
	pool      *pool.WorkerPool
	opts      Options
	recorder  Recorder
	log       *zap.Logger

	// skip 判断推送错误是否可以忽略（例如组内没有连接）
	skip func(error) bool
}

// Option 可选项
type Option func(*Notifier)

// WithPool 使用协程池异步推送
func WithPool(p *pool.WorkerPool) Option {
	return func(n *Notifier) { n.pool = p }
}

// WithRecorder 设置指标记录
func WithRecorder(r Recorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

// WithIgnorable 设置可忽略的推送错误
func WithIgnorable(errs ...error) Option {
	return func(n *Notifier) {
		n.skip = func(err error) bool {
			for _, target := range errs {
				if errors.Is(err, target) {
					return true
				}
			}
			return false
		}
	}
}

// NewNotifier 创建通知器
func NewNotifier(publisher Publisher, opts Options, log *zap.Logger, options ...Option) *Notifier {
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 200 * time.Millisecond
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	n := &Notifier{
		publisher: publisher,
		opts:      opts,
		log:       log.Named("notifier"),
		skip:      func(error) bool { return false },
	}
	for _, apply := range options {
		apply(n)
	}
	return n
}

// Enqueue 提交事件；队列已满时丢弃并记录
func (n *Notifier) Enqueue(events ...Event) {
	for _, ev := range events {
		ev := ev
		if ev.Group == "" {
			continue
		}

		if n.pool == nil {
			n.push(context.Background(), ev)
			continue
		}

		err := n.pool.SubmitTimeout(func(ctx context.Context) { n.push(ctx, ev) }, n.opts.EnqueueTimeout)
		if err != nil {
			n.log.Warn("realtime event dropped",
				zap.String("event", ev.Name),
				zap.String("group", ev.Group),
				zap.Error(err))
			if n.recorder != nil {
				n.recorder.RecordDropped()
			}
		}
	}
}

// push 在限定时间内推送单个事件
func (n *Notifier) push(parent context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), n.opts.PushTimeout)
	defer cancel()

	err := n.publisher.PublishToGroup(ctx, ev.Group, ev.Name, ev.Payload)
	switch {
	case err == nil:
		n.log.Debug("realtime event pushed", zap.String("event", ev.Name), zap.String("group", ev.Group))
		n.record(ev.Name, nil)
	case n.skip(err):
		n.log.Debug("realtime event has no subscribers", zap.String("event", ev.Name), zap.String("group", ev.Group))
		n.record(ev.Name, nil)
	default:
		n.log.Warn("realtime push failed",
			zap.String("event", ev.Name),
			zap.String("group", ev.Group),
			zap.Error(err))
		n.record(ev.Name, err)
	}
}

func (n *Notifier) record(event string, err error) {
	if n.recorder != nil {
		n.recorder.RecordPush(event, err)
	}
}
