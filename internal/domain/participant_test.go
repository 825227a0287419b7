package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipantStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   ParticipantStatus
		terminal bool
	}{
		{StatusActive, false},
		{StatusTempLeft, false},
		{StatusSelfExited, true},
		{StatusKicked, true},
		{StatusSystemRemoved, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestBlockedStatuses_MatchTerminalSet(t *testing.T) {
	// 阻断集合与吸收态集合必须保持一致
	for _, s := range BlockedStatuses {
		assert.True(t, s.Terminal(), "阻断状态 %s 应是吸收态", s)
	}
	assert.Len(t, BlockedStatuses, 3)
}

func TestNewBaseEvent_UniqueIDs(t *testing.T) {
	a := NewBaseEvent(1)
	b := NewBaseEvent(1)

	assert.NotEmpty(t, a.EventID())
	assert.NotEqual(t, a.EventID(), b.EventID(), "每个事件应有独立的 uuid")
	assert.Equal(t, uint(1), a.EventRoomID())
}
