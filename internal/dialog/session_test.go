package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRecentHistoryTrims(t *testing.T) {
	s := NewSession("x")
	for i := 0; i < 60; i++ {
		s.AppendTurn(Turn{UserMessage: "m"})
	}
	assert.Len(t, s.History, 50)
}

func TestSessionRecentHistoryReturnsTail(t *testing.T) {
	s := NewSession("x")
	s.AppendTurn(Turn{UserMessage: "a"})
	s.AppendTurn(Turn{UserMessage: "b"})
	s.AppendTurn(Turn{UserMessage: "c"})

	recent := s.RecentHistory(2)
	assert.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].UserMessage)
	assert.Equal(t, "c", recent[1].UserMessage)
}

func TestSessionLastScriptRoundTrip(t *testing.T) {
	s := NewSession("x")
	assert.Equal(t, "", s.GetLastScript())
	s.SetLastScript("result = box(1, 1, 1)")
	assert.Equal(t, "result = box(1, 1, 1)", s.GetLastScript())
}
