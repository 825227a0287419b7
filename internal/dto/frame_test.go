package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncomingFrame_Validate(t *testing.T) {
	tests := []struct {
		name    string
		frame   IncomingFrame
		wantsOK bool
	}{
		{"合法的 chat", IncomingFrame{Type: FrameChat, Body: "hi"}, true},
		{"chat 缺正文", IncomingFrame{Type: FrameChat}, false},
		{"exit 无需字段", IncomingFrame{Type: FrameExit}, true},
		{"exit 带原因", IncomingFrame{Type: FrameExit, Reason: "bye"}, true},
		{"合法的 kick", IncomingFrame{Type: FrameKick, TargetUserID: 7}, true},
		{"kick 缺目标", IncomingFrame{Type: FrameKick}, false},
		{"未知类型", IncomingFrame{Type: "dance"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := tt.frame.Validate()
			if tt.wantsOK {
				assert.Empty(t, problem)
			} else {
				assert.NotEmpty(t, problem)
			}
		})
	}
}
