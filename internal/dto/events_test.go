package dto_test // 测试包

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
	"github.com/dip1905/Collaborative-Whiteboard/internal/dto"
)

func TestMarshalEvent_RoundTrip(t *testing.T) {
	raw, err := dto.MarshalEvent(dto.EventUpdateUserCount, 3)
	require.NoError(t, err)

	var env dto.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, dto.EventUpdateUserCount, env.Event)

	var count int
	require.NoError(t, json.Unmarshal(env.Data, &count))
	assert.Equal(t, 3, count)
}

func TestMarshalEvent_NilDataOmitsField(t *testing.T) {
	raw, err := dto.MarshalEvent(dto.EventClearCanvas, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)
}

func TestHistoryFromCommands_PreservesOrder(t *testing.T) {
	roomID := "dto-room"
	stroke, err := domain.NewStrokeCommand(roomID, domain.StrokeData{
		Points:      []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
		Color:       "#abcdef",
		StrokeWidth: 4,
	}, time.Now().UTC())
	require.NoError(t, err)
	clearCmd := domain.NewClearCommand(roomID, time.Now().UTC())

	entries, err := dto.HistoryFromCommands([]domain.DrawingCommand{stroke, clearCmd})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.CmdTypeStroke, entries[0].Type)
	assert.Len(t, entries[0].Points, 2)
	assert.Equal(t, "#abcdef", entries[0].Color)
	assert.Equal(t, domain.CmdTypeClear, entries[1].Type)
	assert.Empty(t, entries[1].Points)
}

func TestHistoryFromCommands_ClearOnlyLog(t *testing.T) {
	// 只有 clear 的日志也能回放：一条不带点数据的条目
	clearCmd := domain.NewClearCommand("dto-room", time.Now().UTC())

	entries, err := dto.HistoryFromCommands([]domain.DrawingCommand{clearCmd})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.CmdTypeClear, entries[0].Type)
	assert.NotZero(t, entries[0].Timestamp)
}
