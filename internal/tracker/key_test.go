package tracker

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomTicketKeyShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		key, err := RandomTicketKey(rand.Reader)
		require.NoError(t, err)
		assert.True(t, IsTicketKey(key), "unexpected key %q", key)
	}
}

func TestRandomTicketKeyShortSource(t *testing.T) {
	_, err := RandomTicketKey(bytes.NewReader(nil))
	require.Error(t, err)
}

func TestNewTicketKeyRetriesUntilFree(t *testing.T) {
	calls := 0
	key, err := NewTicketKey(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsTicketKey(key))
}

func TestNewTicketKeyGivesUp(t *testing.T) {
	_, err := NewTicketKey(context.Background(), func(context.Context, string) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, ErrKeySpaceExhausted)
}

func TestNewTicketKeyPropagatesLookupErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewTicketKey(context.Background(), func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestIsTicketKey(t *testing.T) {
	assert.True(t, IsTicketKey("ABC-01234"))
	assert.False(t, IsTicketKey("abc-01234"))
	assert.False(t, IsTicketKey("ABCD-0123"))
	assert.False(t, IsTicketKey("ABC01234"))
}
