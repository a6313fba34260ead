package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockReporter keeps every reported record.
type MockReporter struct {
	mu      sync.Mutex
	records []Record
}

func (mr *MockReporter) Report(r Record) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.records = append(mr.records, *r.Clone())
}

func (mr *MockReporter) Records() []Record {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return append([]Record(nil), mr.records...)
}

func installMock(t *testing.T) *MockReporter {
	t.Helper()
	mock := &MockReporter{}
	SetMetricsReporters([]Reporter{mock})
	t.Cleanup(func() { SetMetricsReporters(nil) })
	return mock
}

func TestCounter(t *testing.T) {
	mock := installMock(t)

	t.Run("incr", func(t *testing.T) {
		IncrCounterWithGroup(NameFrameSentTotal, GroupComm, 1)
		records := mock.Records()
		require.Len(t, records, 1)
		assert.Equal(t, Value(1), records[0].Value())
		assert.Equal(t, NameFrameSentTotal, records[0].Metrics().Name())
		assert.Equal(t, GroupComm, records[0].Metrics().Group())
		assert.Equal(t, Policy_Sum, records[0].Metrics().Policy())
	})

	t.Run("incr with dimensions", func(t *testing.T) {
		IncrCounterWithDimGroup(NameFrameRecvTotal, GroupComm, 2, Dimension{DimKind: "IO"})
		records := mock.Records()
		last := records[len(records)-1]
		assert.Equal(t, Value(2), last.Value())
		assert.Equal(t, "IO", last.Dimensions()[DimKind])
	})

	t.Run("same key returns same metric", func(t *testing.T) {
		assert.Same(t, getCounter("x", "g"), getCounter("x", "g"))
		assert.NotSame(t, getCounter("x", "g"), getCounter("x", "other"))
	})
}

func TestGauges(t *testing.T) {
	mock := installMock(t)

	UpdateGaugeWithGroup(NameQueueDepth, GroupComm, 3)
	UpdateMaxGaugeWithDimGroup(NameQueueDepthMax, GroupComm, 7, Dimension{DimQueue: "message"})

	records := mock.Records()
	require.Len(t, records, 2)
	assert.Equal(t, Policy_Set, records[0].Metrics().Policy())
	assert.Equal(t, Policy_Max, records[1].Metrics().Policy())
	assert.Equal(t, Value(7), records[1].Value())
}

func TestStopwatch(t *testing.T) {
	mock := installMock(t)

	start := time.Now().Add(-20 * time.Millisecond)
	d := RecordStopwatchWithGroup(NameAckRoundTripMS, GroupComm, start)
	assert.GreaterOrEqual(t, d, 20*time.Millisecond)

	records := mock.Records()
	require.Len(t, records, 1)
	assert.GreaterOrEqual(t, float64(records[0].Value()), 20.0)
}

func TestRecordMerge(t *testing.T) {
	c := &counter{name: "c", group: "g"}
	r := NewRecord(c, 2, Dimension{DimKind: "IO"})
	require.NoError(t, r.Merge(NewRecord(c, 3, Dimension{DimKind: "IO"})))
	assert.Equal(t, Value(5), r.Value())

	assert.Error(t, r.Merge(NewRecord(c, 1, Dimension{DimKind: "LCD"})))
	assert.Error(t, r.Merge(NewRecord(&counter{name: "d", group: "g"}, 1, Dimension{DimKind: "IO"})))
	assert.Error(t, r.Merge(NewRecord(&gauge{name: "c", group: "g", policy: Policy_Set}, 1, Dimension{DimKind: "IO"})))

	m := &gauge{name: "m", group: "g", policy: Policy_Max}
	mr := NewRecord(m, 4, nil)
	require.NoError(t, mr.Merge(NewRecord(m, 2, nil)))
	assert.Equal(t, Value(4), mr.Value())
	require.NoError(t, mr.Merge(NewRecord(m, 9, nil)))
	assert.Equal(t, Value(9), mr.Value())

	s := &stopwatch{name: "s", group: "g"}
	sr := NewRecord(s, 10, nil)
	require.NoError(t, sr.Merge(NewRecord(s, 20, nil)))
	assert.Equal(t, Value(15), sr.Value())
	raw, cnt := sr.RawData()
	assert.Equal(t, Value(30), raw)
	assert.Equal(t, 2, cnt)
}

func TestAddRemoveReporter(t *testing.T) {
	SetMetricsReporters(nil)
	t.Cleanup(func() { SetMetricsReporters(nil) })

	a, b := &MockReporter{}, &MockReporter{}
	AddReporter(a)
	AddReporter(b)
	IncrCounterWithGroup("n", "g", 1)
	RemoveReporter(a)
	IncrCounterWithGroup("n", "g", 1)

	assert.Len(t, a.Records(), 1)
	assert.Len(t, b.Records(), 2)
}
