package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxFromContextWithoutTx(t *testing.T) {
	_, ok := TxFromContext(context.Background())
	assert.False(t, ok)
}

func TestMemoryRunnerRunsFnAndPropagatesError(t *testing.T) {
	var ran bool
	err := NewMemoryRunner().RunInTx(context.Background(), TxOptions{}, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	boom := errors.New("boom")
	err = NewMemoryRunner().RunInTx(context.Background(), TxOptions{Serializable: true}, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
