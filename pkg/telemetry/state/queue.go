package state

import (
	"sync"

	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

// RecordQueue buffers completed laps of one session until the sink
// drains them. The ingestion loop is the single producer, the save path
// the single consumer; both may run on different goroutines.
type RecordQueue struct {
	mu    sync.Mutex
	items []model.CompletedLapRecord
}

func NewRecordQueue() *RecordQueue {
	return &RecordQueue{items: make([]model.CompletedLapRecord, 0)}
}

func (q *RecordQueue) Enqueue(rec model.CompletedLapRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, rec)
}

// Drain removes and returns all buffered records in arrival order.
func (q *RecordQueue) Drain() []model.CompletedLapRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = make([]model.CompletedLapRecord, 0)
	return out
}

// Requeue puts records back at the front after a failed flush.
func (q *RecordQueue) Requeue(recs []model.CompletedLapRecord) {
	if len(recs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(recs, q.items...)
}

func (q *RecordQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
