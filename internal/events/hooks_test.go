package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thymos-run/thymos/internal/concepts"
	"github.com/thymos-run/thymos/internal/pubsub"
	"github.com/thymos-run/thymos/pkg/backend"
)

type recordingHook struct {
	BaseHook
	created []string
	deleted []string
}

func (h *recordingHook) OnMemoryCreated(_ context.Context, memory backend.Memory) error {
	h.created = append(h.created, memory.ID)
	return nil
}

func (h *recordingHook) OnMemoryDeleted(_ context.Context, memoryID string) error {
	h.deleted = append(h.deleted, memoryID)
	return nil
}

type failingHook struct {
	BaseHook
	err error
}

func (h *failingHook) OnMemoryCreated(context.Context, backend.Memory) error {
	return h.err
}

type stubExtractor struct {
	err error
}

func (s stubExtractor) Extract(text string) ([]concepts.Concept, error) {
	return nil, s.err
}

func TestHookRegistryDispatchesToEveryHook(t *testing.T) {
	r := NewHookRegistry()
	a := &recordingHook{}
	b := &recordingHook{}
	r.Register(a)
	r.Register(b)

	mem := backend.Memory{ID: "mem-1", Content: "hello"}
	require.NoError(t, r.TriggerCreated(context.Background(), mem))

	assert.Equal(t, []string{"mem-1"}, a.created)
	assert.Equal(t, []string{"mem-1"}, b.created)
}

func TestHookRegistryStopsAtFirstError(t *testing.T) {
	r := NewHookRegistry()
	boom := assert.AnError
	r.Register(&failingHook{err: boom})
	after := &recordingHook{}
	r.Register(after)

	err := r.TriggerCreated(context.Background(), backend.Memory{ID: "mem-1"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, after.created)
}

func TestCompositeHookChainsUnderlyingHooks(t *testing.T) {
	a := &recordingHook{}
	b := &recordingHook{}
	composite := NewCompositeHook().Add(a).Add(b)

	require.NoError(t, composite.OnMemoryDeleted(context.Background(), "mem-1"))
	assert.Equal(t, []string{"mem-1"}, a.deleted)
	assert.Equal(t, []string{"mem-1"}, b.deleted)
}

func TestPubSubForwardingHookPublishesCreatedEvent(t *testing.T) {
	ps := pubsub.NewLocalPubSub()
	received := make(chan pubsub.Message, 1)
	_, err := ps.Subscribe("events.memory", func(msg pubsub.Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	hook := NewPubSubForwardingHook(ps, "events.memory")
	require.NoError(t, hook.OnMemoryCreated(context.Background(), backend.Memory{ID: "mem-1", Content: "hello"}))

	select {
	case msg := <-received:
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(msg.Content, &decoded))
		assert.Equal(t, "memory_created", decoded["event_type"])
		assert.Equal(t, "mem-1", decoded["memory_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}
}

func TestPreviewTruncatesLongContent(t *testing.T) {
	long := make([]rune, 200)
	for i := range long {
		long[i] = 'a'
	}
	out := preview(string(long), 100)
	assert.Len(t, []rune(out), 100)
}

func TestPreviewLeavesShortContentUntouched(t *testing.T) {
	assert.Equal(t, "hi", preview("hi", 100))
}

func TestConceptExtractionHookSurvivesExtractorError(t *testing.T) {
	hook := NewConceptExtractionHook(stubExtractor{err: assert.AnError})
	err := hook.OnMemoryCreated(context.Background(), backend.Memory{ID: "mem-1", Content: "Elinor met Badger"})
	assert.NoError(t, err)
}
