package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewConnectsByAddressAndURL(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	require.NoError(t, client.Close())

	client, err = New(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	got, err := client.Get(context.Background(), "k").Result()
	require.NoError(t, err)
	require.Equal(t, "v", got)
	require.NoError(t, client.Close())
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "redis://%zz")
	require.Error(t, err)
}
