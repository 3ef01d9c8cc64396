package scheduler

// updateQueue is a FIFO of tracking numbers with at most one entry per
// identifier. Not safe for concurrent use; the scheduler serializes access
// together with its in-flight set so the two invariants hold atomically.
type updateQueue struct {
	order  []string
	queued map[string]struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{queued: make(map[string]struct{})}
}

// push appends unless the identifier is already waiting.
func (q *updateQueue) push(trackingNumber string) bool {
	if _, ok := q.queued[trackingNumber]; ok {
		return false
	}
	q.queued[trackingNumber] = struct{}{}
	q.order = append(q.order, trackingNumber)
	return true
}

func (q *updateQueue) pop() (string, bool) {
	if len(q.order) == 0 {
		return "", false
	}
	trackingNumber := q.order[0]
	q.order = q.order[1:]
	delete(q.queued, trackingNumber)
	return trackingNumber, true
}

func (q *updateQueue) remove(trackingNumber string) {
	if _, ok := q.queued[trackingNumber]; !ok {
		return
	}
	delete(q.queued, trackingNumber)
	for i, tn := range q.order {
		if tn == trackingNumber {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

func (q *updateQueue) contains(trackingNumber string) bool {
	_, ok := q.queued[trackingNumber]
	return ok
}

func (q *updateQueue) len() int { return len(q.order) }
