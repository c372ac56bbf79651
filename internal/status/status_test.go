package status_test

import (
	"context"
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/dustctl/internal/logger"
	"codeberg.org/mutker/dustctl/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	b, err := status.Encode(status.NewMessage(0.42, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":{"dust_value":0.42}}`, string(b))

	b, err = status.Encode(status.NewMessage(0, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":{"dust_value":0}}`, string(b))

	b, err = status.Encode(status.NewMessage(0, false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":{"dust_value":null}}`, string(b))
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, *status.Message) error {
	f.calls++
	return stderrors.New("broker gone")
}

func TestLatest(t *testing.T) {
	down := &failingPublisher{}
	l := status.NewLatest(down, logger.Nop())
	assert.Nil(t, l.Last())

	msg := status.NewMessage(3, true)
	err := l.Publish(context.Background(), msg)
	assert.Error(t, err)
	assert.Equal(t, 1, down.calls)
	assert.Same(t, msg, l.Last())
}

func TestLatestWithoutDownstream(t *testing.T) {
	l := status.NewLatest(nil, logger.Nop())
	require.NoError(t, l.Publish(context.Background(), status.NewMessage(1, true)))
	require.NotNil(t, l.Last())
	assert.InDelta(t, 1.0, *l.Last().Status.DustValue, 1e-9)
}
