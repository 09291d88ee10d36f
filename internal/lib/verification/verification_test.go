package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lockify/internal/lib/logger/handlers/slogdiscard"
	"lockify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (p *recordingPublisher) SendMessage(_ context.Context, msg models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.msgs = append(p.msgs, msg)

	return p.err
}

func (p *recordingPublisher) snapshot() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]models.Message(nil), p.msgs...)
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 2*tokenBytes)
	assert.NotEqual(t, a, b)
}

func TestLink(t *testing.T) {
	assert.Equal(t,
		"http://localhost:5173/verification?token=abc123",
		Link("http://localhost:5173/", "abc123"),
	)
}

func TestDispatcher_Dispatch(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(slogdiscard.NewDiscardLogger(), pub, "https://lockify.app", time.Second)

	d.Dispatch("alice@gmail.com", "tok1")
	d.Dispatch("bob@gmail.com", "tok2")
	d.Close()

	require.Len(t, pub.msgs, 2)

	byEmail := map[string]models.Message{}
	for _, m := range pub.msgs {
		byEmail[m.Email] = m
	}

	assert.Equal(t, "https://lockify.app/verification?token=tok1", byEmail["alice@gmail.com"].Link)
	assert.Equal(t, models.PurposeEmailVerification, byEmail["bob@gmail.com"].Purpose)
}

func TestDispatcher_PublisherErrorIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(slogdiscard.NewDiscardLogger(), pub, "https://lockify.app", time.Second)

	d.Dispatch("alice@gmail.com", "tok1")
	d.Close()

	assert.Len(t, pub.msgs, 1)
}

func TestDispatcher_DispatchAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(slogdiscard.NewDiscardLogger(), pub, "https://lockify.app", time.Second)

	d.Dispatch("alice@gmail.com", "tok1")
	d.Close()

	d.Dispatch("bob@gmail.com", "tok2")
	d.Close()

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "alice@gmail.com", pub.msgs[0].Email)
}

func TestDispatcher_ConcurrentDispatchAndClose(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(slogdiscard.NewDiscardLogger(), pub, "https://lockify.app", time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch("alice@gmail.com", "tok")
		}()
	}

	d.Close()
	wg.Wait()

	n := len(pub.snapshot())
	d.Close()
	assert.Equal(t, n, len(pub.snapshot()))
}
