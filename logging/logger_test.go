package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_RejectsUnknownLevel(t *testing.T) {
	_, err := Init("chatty")
	assert.Error(t, err)
}

func TestInit_BuildsLogger(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	logger, err := Init("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Same(t, logger, Logger())
}

func TestSet_RoutesSugaredCalls(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	L().Infof("[Test] hello %s", "world")
	L().Debugf("[Test] dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "[Test] hello world", entries[0].Message)
}
