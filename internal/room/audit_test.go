// internal/room/audit_test.go
package room

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditQueueDrainsBeforeCloseReturns(t *testing.T) {
	q := newAuditQueue(8, quietLogger())

	var ran int32
	for i := 0; i < 5; i++ {
		q.enqueue(func(context.Context) { atomic.AddInt32(&ran, 1) })
	}
	q.close()

	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestAuditQueueEnqueueAfterCloseIsDropped(t *testing.T) {
	q := newAuditQueue(8, quietLogger())
	q.close()

	var ran int32
	require.NotPanics(t, func() {
		q.enqueue(func(context.Context) { atomic.AddInt32(&ran, 1) })
	})
	require.NotPanics(t, q.close)
	assert.Zero(t, atomic.LoadInt32(&ran))
}
