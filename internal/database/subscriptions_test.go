package database_test

import (
	"context"
	"report-backend/internal/database"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionDirectory(t *testing.T) {
	ctx := context.Background()
	directory := database.NewSubscriptionDirectory(createDB(t))

	_, found, err := directory.Lookup(ctx, "report42")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, directory.Register(ctx, "report42", "http://client-a/hook"))
	require.NoError(t, directory.Register(ctx, "report42", "http://client-b/hook"))

	handle, found, err := directory.Lookup(ctx, "report42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "http://client-b/hook", handle)

	require.NoError(t, directory.Remove(ctx, "report42"))
	_, found, err = directory.Lookup(ctx, "report42")
	require.NoError(t, err)
	assert.False(t, found)

	// Removing an absent subscription is a no-op.
	require.NoError(t, directory.Remove(ctx, "report42"))
}
