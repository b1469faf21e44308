package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/weakwords/internal/kv"
	"github.com/verte-zerg/weakwords/internal/model"
)

// memKV is an in-memory kv.KV with injectable failures and write latency.
type memKV struct {
	mu        sync.Mutex
	values    map[string][]byte
	failGets  int
	failSets  int
	setDelay  time.Duration
	setCalls  int
	lastWrite []byte
}

func newMemKV() *memKV {
	return &memKV{values: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGets > 0 {
		m.failGets--
		return nil, errors.New("disk on fire")
	}
	v, ok := m.values[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	delay := m.setDelay
	m.setCalls++
	if m.failSets > 0 {
		m.failSets--
		m.mu.Unlock()
		return errors.New("quota exceeded")
	}
	m.mu.Unlock()
	time.Sleep(delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	m.lastWrite = m.values[key]
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memKV) Watch(ctx context.Context, _ string) (<-chan struct{}, error) {
	ch := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (m *memKV) Close() error { return nil }

func (m *memKV) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}

func newQueue(t *testing.T, backend kv.KV) (*Store, *Queue) {
	t.Helper()
	st := New(backend, "")
	q := NewQueue(st, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return st, q
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for update")
		return nil
	}
}

func TestGetMergesDefaultsUnderPartialRecord(t *testing.T) {
	backend := newMemKV()
	backend.values[model.DefaultKey] = []byte(`{"erroredWords":{"the":2},"settings":{"minSamples":3}}`)
	st := New(backend, "")

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, data.ErroredWords["the"])
	assert.NotNil(t, data.SlowWords)
	assert.Equal(t, 3, data.Settings.MinSamples)
	assert.Equal(t, 50, data.Settings.WordsToShow)
	assert.Equal(t, 50, data.Settings.SlowWordHistoryCount)
	assert.True(t, data.Settings.DisableTrackingInCustomMode)
}

func TestGetMissingRecordReturnsDefaults(t *testing.T) {
	st := New(newMemKV(), "")
	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultData(), data)
}

func TestRecordSlowWordSlidingWindow(t *testing.T) {
	backend := newMemKV()
	backend.values[model.DefaultKey] = []byte(`{"slowWords":{"which":{"count":2,"avgSpeed":50,"samples":[40,60]}},"settings":{"slowWordHistoryCount":2}}`)
	st, q := newQueue(t, backend)

	require.NoError(t, wait(t, q.Update("slow", RecordSlowWord("which", 50))))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	entry := data.SlowWords["which"]
	require.NotNil(t, entry)
	assert.Equal(t, []float64{60, 50}, entry.Samples)
	assert.InDelta(t, 55, entry.AvgSpeed, 1e-9)
	assert.Equal(t, 3, entry.Count)
	assert.NotZero(t, data.LastUpdate)
}

func TestAverageTracksSamples(t *testing.T) {
	backend := newMemKV()
	backend.values[model.DefaultKey] = []byte(`{"settings":{"slowWordHistoryCount":3}}`)
	st, q := newQueue(t, backend)

	samples := []float64{31.5, 88, 42, 57.25, 12, 99}
	var last <-chan error
	for _, s := range samples {
		last = q.Update("slow", RecordSlowWord("over", s))
	}
	require.NoError(t, wait(t, last))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	entry := data.SlowWords["over"]
	require.NotNil(t, entry)
	assert.Equal(t, []float64{57.25, 12, 99}, entry.Samples)
	assert.InDelta(t, (57.25+12+99)/3, entry.AvgSpeed, 1e-9)
	assert.Equal(t, len(samples), entry.Count)
}

func TestRecordSlowWordIgnoresNonPositive(t *testing.T) {
	st, q := newQueue(t, newMemKV())
	require.NoError(t, wait(t, q.Update("slow", RecordSlowWord("zero", 0))))
	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, data.SlowWords)
}

func TestQueueAppliesInIssuanceOrder(t *testing.T) {
	backend := newMemKV()
	backend.setDelay = 2 * time.Millisecond
	st, q := newQueue(t, backend)

	const n = 50
	dones := make([]<-chan error, 0, n)
	for i := 0; i < n; i++ {
		i := i
		dones = append(dones, q.Update("append", func(d *model.Data) error {
			d.ErroredWords[fmt.Sprintf("w%02d", i)] = len(d.ErroredWords)
			return nil
		}))
	}
	for _, done := range dones {
		require.NoError(t, wait(t, done))
	}

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, data.ErroredWords, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, i, data.ErroredWords[fmt.Sprintf("w%02d", i)])
	}
}

func TestQueueNoLostUpdatesFromConcurrentCallers(t *testing.T) {
	backend := newMemKV()
	backend.setDelay = time.Millisecond
	st, q := newQueue(t, backend)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				<-q.Update("error", RecordError("the"))
			}
		}()
	}
	wg.Wait()

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80, data.ErroredWords["the"])
}

func TestQueueFailureDoesNotStallChain(t *testing.T) {
	backend := newMemKV()
	backend.failGets = 1
	st, q := newQueue(t, backend)

	first := q.Update("error", RecordError("a"))
	second := q.Update("error", RecordError("b"))
	third := q.Update("broken", func(*model.Data) error {
		return errors.New("boom")
	})
	fourth := q.Update("panics", func(*model.Data) error {
		panic("bad updater")
	})
	fifth := q.Update("error", RecordError("c"))

	require.Error(t, wait(t, first))
	require.NoError(t, wait(t, second))
	require.Error(t, wait(t, third))
	require.Error(t, wait(t, fourth))
	require.NoError(t, wait(t, fifth))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 1, "c": 1}, data.ErroredWords)
}

func TestQueueWriteFailureIsNotRetried(t *testing.T) {
	backend := newMemKV()
	backend.failSets = 1
	st, q := newQueue(t, backend)

	require.Error(t, wait(t, q.Update("error", RecordError("a"))))
	require.NoError(t, wait(t, q.Update("error", RecordError("b"))))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 1}, data.ErroredWords)
	assert.Equal(t, 2, backend.writes())
}

func TestQueueCloseDrainsAndRejects(t *testing.T) {
	backend := newMemKV()
	st := New(backend, "")
	q := NewQueue(st, nil)

	for i := 0; i < 5; i++ {
		q.Update("error", RecordError("x"))
	}
	require.NoError(t, q.Close(context.Background()))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, data.ErroredWords["x"])

	err = <-q.Update("error", RecordError("x"))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestClearAndDeleteKeepSettings(t *testing.T) {
	backend := newMemKV()
	backend.values[model.DefaultKey] = []byte(`{"slowWords":{"a":{"count":1,"avgSpeed":10,"samples":[10]},"b":{"count":1,"avgSpeed":20,"samples":[20]}},"erroredWords":{"a":1,"b":4},"settings":{"wordsToShow":12}}`)
	st, q := newQueue(t, backend)

	require.NoError(t, wait(t, q.Update("delete", DeleteWord(ListSlow, "a"))))
	require.NoError(t, wait(t, q.Update("clear", ClearList(ListErrors))))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.SlowWords, 1)
	assert.Contains(t, data.SlowWords, "b")
	assert.Empty(t, data.ErroredWords)
	assert.Equal(t, 12, data.Settings.WordsToShow)

	require.NoError(t, wait(t, q.Update("clear", ClearAll())))
	data, err = st.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, data.SlowWords)
	assert.Equal(t, 12, data.Settings.WordsToShow)
}

func TestSaveSettingsClamps(t *testing.T) {
	st, q := newQueue(t, newMemKV())
	require.NoError(t, wait(t, q.Update("settings", SaveSettings(model.Settings{
		WordsToShow:          1000,
		MinSamples:           0,
		SlowWordHistoryCount: 9999,
	}))))
	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, data.Settings.WordsToShow)
	assert.Equal(t, 1, data.Settings.MinSamples)
	assert.Equal(t, 500, data.Settings.SlowWordHistoryCount)
	assert.False(t, data.Settings.DisableTrackingInCustomMode)
}

func TestParseImport(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "errors only", payload: `{"erroredWords":{"the":3}}`},
		{name: "slow only", payload: `{"slowWords":{"the":{"count":1,"avgSpeed":40,"samples":[40]}}}`},
		{name: "full export", payload: `{"slowWords":{},"erroredWords":{},"settings":{"wordsToShow":50},"lastUpdate":1}`},
		{name: "neither list", payload: `{"settings":{}}`, wantErr: true},
		{name: "not an object", payload: `[1,2]`, wantErr: true},
		{name: "bad json", payload: `{"slowWords":`, wantErr: true},
		{name: "negative count", payload: `{"erroredWords":{"the":-1}}`, wantErr: true},
		{name: "string sample", payload: `{"slowWords":{"the":{"samples":["fast"]}}}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseImport([]byte(tc.payload))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidImport)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMergeImportOverwritesConflicts(t *testing.T) {
	backend := newMemKV()
	backend.values[model.DefaultKey] = []byte(`{"slowWords":{"keep":{"count":1,"avgSpeed":30,"samples":[30]},"both":{"count":9,"avgSpeed":10,"samples":[10]}},"erroredWords":{"keep":2,"both":5},"settings":{"slowWordHistoryCount":2}}`)
	st, q := newQueue(t, backend)

	in, err := ParseImport([]byte(`{"slowWords":{"both":{"count":3,"avgSpeed":1,"samples":[70,80,90]},"new":{"count":1,"avgSpeed":44,"samples":[44]}},"erroredWords":{"both":1}}`))
	require.NoError(t, err)
	require.NoError(t, wait(t, q.Update("import", MergeImport(in))))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"keep": 2, "both": 1}, data.ErroredWords)
	require.Contains(t, data.SlowWords, "keep")
	require.Contains(t, data.SlowWords, "new")
	both := data.SlowWords["both"]
	assert.Equal(t, []float64{80, 90}, both.Samples)
	assert.InDelta(t, 85, both.AvgSpeed, 1e-9)
	assert.Equal(t, 3, both.Count)
}

func TestQueueOverSQLite(t *testing.T) {
	backend, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "weakwords.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = backend.Close()
	})
	st, q := newQueue(t, backend)

	// 600ms for a five-letter word: (5/5) / (600/60000) = 100 wpm.
	wpm := (5.0 / 5.0) / (600.0 / 60000.0)
	var last <-chan error
	for i := 0; i < 3; i++ {
		last = q.Update("slow", RecordSlowWord("hello", wpm))
	}
	require.NoError(t, wait(t, last))

	data, err := st.Get(context.Background())
	require.NoError(t, err)
	entry := data.SlowWords["hello"]
	require.NotNil(t, entry)
	assert.Len(t, entry.Samples, 3)
	assert.False(t, math.IsNaN(entry.AvgSpeed))
	assert.InDelta(t, 100, entry.AvgSpeed, 1e-9)
}
