package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/container"
)

func TestPriorityQueueHeapify(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.Push("c", 3)
	q.Push("a", 1)
	q.Push("b", 2)
	assert.Equal(t, 3, q.Len())
	q.Heapify()

	assert.Equal(t, "a", q.First())
	v, p := q.HeapPop()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1.0, p)
	v, _ = q.HeapPop()
	assert.Equal(t, "b", v)
	v, _ = q.HeapPop()
	assert.Equal(t, "c", v)
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueueHeapPush(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	q.HeapPush(30, 30)
	q.HeapPush(10, 10)
	q.HeapPush(20, 20)

	out := make([]int, 0, 3)
	for q.Len() > 0 {
		v, _ := q.HeapPop()
		out = append(out, v)
	}
	assert.Equal(t, []int{10, 20, 30}, out)
}
