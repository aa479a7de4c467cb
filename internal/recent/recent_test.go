package recent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendOverwritesUnreadValue(t *testing.T) {
	c := New[int]()
	tx, rx := c.Split()

	require.NoError(t, tx.Send(1))
	require.NoError(t, tx.Send(2))
	require.NoError(t, tx.Send(3))

	v, err := rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestTryRecvEmpty(t *testing.T) {
	c := New[int]()
	_, rx := c.Split()
	_, err := rx.TryRecv()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRecvTimeout(t *testing.T) {
	c := New[int]()
	_, rx := c.Split()
	_, err := rx.RecvTimeout(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDisconnectSignalsReceiver(t *testing.T) {
	c := New[int]()
	tx, rx := c.Split()
	tx.Close()

	_, err := rx.Recv()
	assert.ErrorIs(t, err, ErrDisconnected)

	err = tx.Send(1)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestBlockingRecvUnblocksOnSend(t *testing.T) {
	c := New[string]()
	tx, rx := c.Split()

	done := make(chan string, 1)
	go func() {
		v, err := rx.Recv()
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, tx.Send("hello"))

	select {
	case v := <-done:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock")
	}
}

func TestRecvAfterLastSendOnly(t *testing.T) {
	// Invariant 3: a receive strictly after the last send (with no
	// intervening receive) observes exactly that last sent value.
	c := New[int]()
	tx, rx := c.Split()
	for i := 0; i < 10; i++ {
		require.NoError(t, tx.Send(i))
	}
	v, err := rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}
