package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	sent []Message
	err  error
}

func (r *recordingSink) Send(ctx context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestMultiSink_AttemptsEverySink(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{err: errors.New("broker down")}
	ok := &recordingSink{}

	err := MultiSink{failing, ok}.Send(context.Background(), Message{Type: "BOOKING_CREATED", UserID: "u1"})
	require.Error(t, err)
	require.Len(t, failing.sent, 1)
	require.Len(t, ok.sent, 1)
}

func TestLogSink_WritesStructuredEntry(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Send(context.Background(), Message{Type: "BOOKING_ACCEPTED", UserID: "renter-1", Title: "Accepted"}))

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	require.Equal(t, "renter-1", entries[0].ContextMap()["user_id"])
}

func TestRoutingKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "notification.booking_created", RoutingKey("BOOKING_CREATED"))
}
