package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestTimingMetricRecord(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")

	m.Record(10 * time.Millisecond)
	m.Record(30 * time.Millisecond)
	m.Record(20 * time.Millisecond)

	s := m.Stats()
	if s.Count != 3 {
		t.Errorf("count = %d, want 3", s.Count)
	}
	if s.MinMs != 10 || s.MaxMs != 30 {
		t.Errorf("min/max = %v/%v, want 10/30", s.MinMs, s.MaxMs)
	}
	if s.AvgMs != 20 {
		t.Errorf("avg = %v, want 20", s.AvgMs)
	}
	if s.TotalMs != 60 {
		t.Errorf("total = %v, want 60", s.TotalMs)
	}
}

func TestTimingMetricReset(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")
	m.Record(time.Millisecond)
	m.Reset()

	if m.Count() != 0 || m.AvgNs() != 0 {
		t.Errorf("reset left count=%d avg=%d", m.Count(), m.AvgNs())
	}
}

func TestTimingMetricDisabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("test")
	m.Record(time.Millisecond)
	if m.Count() != 0 {
		t.Error("disabled metric recorded a sample")
	}

	done := Timer(m)
	done()
	if m.Count() != 0 {
		t.Error("disabled timer recorded a sample")
	}
}

func TestTimerRecordsElapsed(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")

	done := Timer(m)
	time.Sleep(5 * time.Millisecond)
	done()

	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
	if m.AvgNs() < int64(4*time.Millisecond) {
		t.Errorf("recorded %dns, want at least ~5ms", m.AvgNs())
	}
}

func TestTimerNilMetric(t *testing.T) {
	Timer(nil)() // must not panic
}

func TestTimingMetricConcurrentRecord(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Record(time.Microsecond)
			}
		}()
	}
	wg.Wait()

	if m.Count() != 8000 {
		t.Errorf("count = %d, want 8000", m.Count())
	}
}

func TestAllTimingStatsSkipsEmpty(t *testing.T) {
	SetEnabled(true)
	ResetAll()

	Cull.Record(time.Millisecond)
	stats := AllTimingStats()
	if len(stats) != 1 || stats[0].Name != "cull" {
		t.Errorf("stats = %+v, want only cull", stats)
	}
	ResetAll()
}
