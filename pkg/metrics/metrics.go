package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	storage  tstorage.Storage
	counters = make(map[string]int64)
	mu       sync.Mutex
)

// InitMetrics opens the on-disk time series store under workdir/data/metrics
func InitMetrics(workdir string) error {
	dir := filepath.Join(workdir, "data", "metrics")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(dir),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	if err != nil {
		return err
	}
	mu.Lock()
	storage = s
	mu.Unlock()
	return nil
}

// Inc increments a counter and records the new value
func Inc(name string) {
	mu.Lock()
	counters[name]++
	v := counters[name]
	mu.Unlock()
	insert(name, v)
}

// SetGauge records an absolute value
func SetGauge(name string, value int64) {
	mu.Lock()
	counters[name] = value
	mu.Unlock()
	insert(name, value)
}

// Value returns the current in-memory value of a counter or gauge
func Value(name string) int64 {
	mu.Lock()
	defer mu.Unlock()
	return counters[name]
}

// Query returns recorded points for name between start and end (unix seconds)
func Query(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return nil, nil
	}
	return s.Select(name, nil, start, end)
}

func insert(name string, value int64) {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
	}})
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
