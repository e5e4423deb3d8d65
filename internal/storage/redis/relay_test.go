package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivered struct {
	group, event string
	payload      interface{}
}

type fakeDeliverer struct {
	got []delivered
	err error
}

func (f *fakeDeliverer) PublishToGroup(_ context.Context, group, event string, payload interface{}) error {
	f.got = append(f.got, delivered{group, event, payload})
	return f.err
}

func TestRelayEnvelope(t *testing.T) {
	t.Run("编码后投递到本地", func(t *testing.T) {
		raw, err := encodeEnvelope("ayse@notika.dev", "NewMessage", map[string]interface{}{"messageId": 7})
		require.NoError(t, err)

		local := &fakeDeliverer{}
		r := NewRelay(nil, local, nil)
		r.deliver(context.Background(), raw)

		require.Len(t, local.got, 1)
		assert.Equal(t, "ayse@notika.dev", local.got[0].group)
		assert.Equal(t, "NewMessage", local.got[0].event)

		data, ok := local.got[0].payload.(json.RawMessage)
		require.True(t, ok)
		assert.JSONEq(t, `{"messageId":7}`, string(data))
	})

	t.Run("格式错误的消息被丢弃", func(t *testing.T) {
		local := &fakeDeliverer{}
		r := NewRelay(nil, local, nil)

		r.deliver(context.Background(), "not json")
		r.deliver(context.Background(), `{"group":"","event":"NewMessage"}`)
		assert.Empty(t, local.got)
	})

	t.Run("本地投递失败不会中断", func(t *testing.T) {
		raw, err := encodeEnvelope("admins", "NewNotification", nil)
		require.NoError(t, err)

		local := &fakeDeliverer{err: errors.New("no subscribers in group")}
		r := NewRelay(nil, local, nil)
		r.deliver(context.Background(), raw)

		require.Len(t, local.got, 1)
		assert.Nil(t, local.got[0].payload)
	})
}
