package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/signer"
)

func TestNewWiresEverySubsystem(t *testing.T) {
	sec := make([]byte, 32)
	sec[31] = 7
	sign, err := signer.NewLocal(sec)
	require.NoError(t, err)

	c := New(nil, sign, DefaultConfig())
	require.NotNil(t, c.Pool)
	require.NotNil(t, c.Subs)
	require.NotNil(t, c.Publish)
	require.NotNil(t, c.Outbox)
	require.NotNil(t, c.Ranker)
	require.NotNil(t, c.Selector)
	require.Equal(t, sign.Pub(), c.Signer.Pub())
}
