package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/store/memory"
)

func TestOpen_Memory(t *testing.T) {
	st, err := Open(context.Background(), Config{Driver: "memory"})
	require.NoError(t, err)
	defer st.Close()
	_, ok := st.(*memory.Store)
	assert.True(t, ok)
	require.NoError(t, st.Ping(context.Background()))
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"})
	require.Error(t, err)
}

func TestOpen_PostgresBadDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres", DSN: "postgres://%zz"})
	require.Error(t, err)
}
