package nats_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/internal/testutils"
	"github.com/aretw0/ramal/pkg/adapters/memory"
	ramalnats "github.com/aretw0/ramal/pkg/adapters/nats"
	"github.com/aretw0/ramal/pkg/domain"
)

type published struct {
	subject string
	data    []byte
}

// fakeConn records publishes and routes them to local subscribers.
type fakeConn struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]nats.MsgHandler
	ready     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: make(map[string]nats.MsgHandler), ready: make(chan struct{}, 2)}
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	f.published = append(f.published, published{subject: subject, data: data})
	h := f.handlers[subject]
	f.mu.Unlock()
	if h != nil {
		h(&nats.Msg{Subject: subject, Data: data})
	}
	return nil
}

func (f *fakeConn) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.mu.Lock()
	f.handlers[subject] = cb
	f.mu.Unlock()
	f.ready <- struct{}{}
	return &nats.Subscription{Subject: subject, Queue: queue}, nil
}

func (f *fakeConn) envelopes(subject string) []ramalnats.OutboundEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ramalnats.OutboundEnvelope
	for _, p := range f.published {
		if p.subject != subject {
			continue
		}
		var env ramalnats.OutboundEnvelope
		if err := json.Unmarshal(p.data, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func TestSubjectsFor(t *testing.T) {
	s := ramalnats.SubjectsFor("")
	assert.Equal(t, "ramal.inbound", s.Inbound)
	assert.Equal(t, "crm.handoff", ramalnats.SubjectsFor("crm").Handoff)
}

func TestPublisher(t *testing.T) {
	conn := newFakeConn()
	pub := ramalnats.NewPublisher(conn, "crm")
	ctx := context.Background()

	require.NoError(t, pub.Send(ctx, "573001112233@c.us", domain.Effect{Type: domain.EffectText, Text: "hola"}))
	require.NoError(t, pub.AssignToQueue(ctx, "573001112233@c.us", "requested"))

	out := conn.envelopes("crm.outbound")
	require.Len(t, out, 1)
	assert.Equal(t, "573001112233@c.us", out[0].ChatID)
	assert.Equal(t, "hola", out[0].Effect.Text)
	assert.NotEmpty(t, out[0].ID)

	handoffs := conn.envelopes("crm.handoff")
	require.Len(t, handoffs, 1)
	assert.Equal(t, "requested", handoffs[0].Reason)
	assert.Nil(t, handoffs[0].Effect)
	assert.NotEqual(t, out[0].ID, handoffs[0].ID)
}

func TestConsumer_DrivesBot(t *testing.T) {
	conn := newFakeConn()
	pub := ramalnats.NewPublisher(conn, "")
	bot, err := ramal.New(
		memory.NewGraphStoreFromGraphs(testutils.PolicyGraph(t)),
		ramal.WithChannel(pub),
		ramal.WithLifecycle(pub),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	consumer := ramalnats.NewConsumer(conn, bot, "", ramalnats.WithHandleTimeout(time.Second))
	go func() { done <- consumer.Run(ctx) }()
	<-conn.ready
	<-conn.ready

	send := func(subject string, v any) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, conn.Publish(subject, data))
	}
	subjects := ramalnats.SubjectsFor("")

	send(subjects.Start, ramalnats.StartCommand{ChatID: "c1", FlowID: testutils.PolicyFlowID})
	send(subjects.Inbound, ramalnats.InboundMessage{ChatID: "c1", Text: "si"})
	send(subjects.Inbound, ramalnats.InboundMessage{ChatID: "c1", Text: "2"})
	// After the handoff the chat belongs to agents; this is ignored.
	send(subjects.Inbound, ramalnats.InboundMessage{ChatID: "c1", Text: "hola?"})
	require.NoError(t, conn.Publish(subjects.Inbound, []byte("not json")))

	handoffs := conn.envelopes(subjects.Handoff)
	require.Len(t, handoffs, 1)
	assert.Equal(t, "c1", handoffs[0].ChatID)
	assert.Equal(t, "requested", handoffs[0].Reason)

	outbound := conn.envelopes(subjects.Outbound)
	require.Len(t, outbound, 4)
	assert.Equal(t, domain.EffectMenu, outbound[0].Effect.Type)
	assert.Equal(t, ramal.DefaultHandoffMessage, outbound[3].Effect.Text)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
