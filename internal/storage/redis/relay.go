package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// RealtimeChannel 实时事件的发布订阅频道
const RealtimeChannel = "notika:realtime"

// LocalDeliverer 把事件投递给本实例的连接
type LocalDeliverer interface {
	PublishToGroup(ctx context.Context, group, event string, payload interface{}) error
}

// envelope 频道消息
type envelope struct {
	Group string          `json:"group"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Relay 通过 Redis 发布订阅把实时事件转发到所有实例
//
// 发布端只写频道；每个实例各自订阅频道，再交给本地 Hub 投递。
type Relay struct {
	client *Client
	local  LocalDeliverer
	log    *zap.Logger
	ready  chan struct{}
}

// NewRelay 创建转发器
func NewRelay(client *Client, local LocalDeliverer, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		client: client,
		local:  local,
		log:    log.Named("relay"),
		ready:  make(chan struct{}),
	}
}

// PublishToGroup 把事件发布到频道
func (r *Relay) PublishToGroup(ctx context.Context, group, event string, payload interface{}) error {
	msg, err := encodeEnvelope(group, event, payload)
	if err != nil {
		return err
	}
	if err := r.client.rdb.Publish(ctx, RealtimeChannel, msg).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Ready 订阅建立后关闭
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run 订阅频道并投递到本地，直到 ctx 取消
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.rdb.Subscribe(ctx, RealtimeChannel)
	defer pubsub.Close()

	// 等待订阅确认，保证 Ready 之后发布的事件不会丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", RealtimeChannel, err)
	}
	close(r.ready)
	r.log.Info("realtime relay subscribed", zap.String("channel", RealtimeChannel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

// deliver 解析频道消息并投递；本实例没有订阅者时静默跳过
func (r *Relay) deliver(ctx context.Context, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.log.Warn("dropping malformed realtime envelope", zap.Error(err))
		return
	}
	if env.Group == "" || env.Event == "" {
		r.log.Warn("dropping incomplete realtime envelope")
		return
	}

	var payload interface{}
	if len(env.Data) > 0 {
		payload = env.Data
	}

	// 大多数实例上组内没有连接，这是常态
	if err := r.local.PublishToGroup(ctx, env.Group, env.Event, payload); err != nil {
		r.log.Debug("local realtime delivery skipped",
			zap.String("group", env.Group),
			zap.String("event", env.Event),
			zap.Error(err))
	}
}

func encodeEnvelope(group, event string, payload interface{}) (string, error) {
	env := envelope{Group: group, Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode realtime payload: %w", err)
		}
		env.Data = data
	}

	out, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
