package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/dialog"
	"github.com/smilemakc/cadtalk/internal/domainerr"
)

func TestCreateAndGet(t *testing.T) {
	s := New()
	created, err := s.Create("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", created.ID)

	got, err := s.Get("sess-1")
	require.NoError(t, err)
	assert.Same(t, created, got)
}

func TestGetUnknownSessionFails(t *testing.T) {
	s := New()
	_, err := s.Get("missing")
	require.Error(t, err)
	assert.True(t, domainerr.Is(err, domainerr.CodeSessionNotFound))
}

func TestListReturnsAllSessions(t *testing.T) {
	s := New()
	_, _ = s.Create("a")
	_, _ = s.Create("b")
	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDeleteRemovesSession(t *testing.T) {
	s := New()
	_, _ = s.Create("a")
	require.NoError(t, s.Delete("a"))
	_, err := s.Get("a")
	require.Error(t, err)
}

func TestSessionBusyGuardIsPerSession(t *testing.T) {
	s := New()
	sess, _ := s.Create("a")
	assert.True(t, sess.TryAcquire())
	assert.False(t, sess.TryAcquire())
	sess.Release()
	assert.True(t, sess.TryAcquire())
}
