package dimse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateIdle:            "Idle",
		StateRequesting:      "Requesting",
		StateListening:       "Listening",
		StateAwaitingRequest: "AwaitingRequest",
		StateEstablished:     "Established",
		StateReleasing:       "Releasing",
		StateClosed:          "Closed",
		StateAborted:         "Aborted",
	}
	for s, want := range cases {
		assert.Equal(t, want, s.String())
	}
	assert.Equal(t, "State(99)", State(99).String())
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateClosed.terminal())
	assert.True(t, StateAborted.terminal())
	assert.False(t, StateEstablished.terminal())
	assert.False(t, StateIdle.terminal())
}
