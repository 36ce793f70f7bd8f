package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptchat/models"
)

func TestTranscript_AppendOrderAndFormat(t *testing.T) {
	clock := newFakeClock()
	tr := NewTranscript(clock)

	first := tr.Append(models.RoleAssistant, "Welcome")
	clock.Advance(9 * time.Hour)
	second := tr.Append(models.RoleUser, "Hi")

	_, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "03:04 PM", first.Timestamp)
	assert.Equal(t, "12:04 AM", second.Timestamp)

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, first, msgs[0])
	assert.Equal(t, second, msgs[1])

	msgs[0].Text = "changed"
	assert.Equal(t, "Welcome", tr.Messages()[0].Text)
	assert.Equal(t, 2, tr.Len())
}
