package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/weakwords/internal/model"
)

func record(samples map[string][]float64, errors map[string]int) model.Data {
	d := model.DefaultData()
	for word, s := range samples {
		var sum float64
		for _, v := range s {
			sum += v
		}
		d.SlowWords[word] = &model.SlowWord{Count: len(s), AvgSpeed: sum / float64(len(s)), Samples: s}
	}
	for word, n := range errors {
		d.ErroredWords[word] = n
	}
	return d
}

func TestRankSlowOrdersAndFilters(t *testing.T) {
	d := record(map[string][]float64{
		"quick": {30, 40},
		"brown": {90, 110},
		"fox":   {60, 60},
		"jumps": {20},
		"lazy":  {60, 60},
	}, nil)
	d.Settings.MinSamples = 2

	rows := RankSlow(d)
	assert.Equal(t, []string{"quick", "fox", "lazy", "brown"}, SlowWords(rows))
	assert.Equal(t, SpeedSlow, rows[0].Class)
	assert.Equal(t, SpeedMedium, rows[1].Class)
	assert.Equal(t, SpeedFast, rows[3].Class)
}

func TestRankSlowLimitsToWordsToShow(t *testing.T) {
	d := record(map[string][]float64{"a": {1}, "b": {2}, "c": {3}}, nil)
	d.Settings.WordsToShow = 2
	assert.Equal(t, []string{"a", "b"}, SlowWords(RankSlow(d)))
}

func TestRankSlowSingleSpeedIsSlow(t *testing.T) {
	rows := RankSlow(record(map[string][]float64{"a": {40}, "b": {40}}, nil))
	require.Len(t, rows, 2)
	assert.Equal(t, SpeedSlow, rows[0].Class)
	assert.Equal(t, SpeedSlow, rows[1].Class)
}

func TestRankErrors(t *testing.T) {
	d := record(nil, map[string]int{"the": 2, "over": 5, "dog": 2})
	rows := RankErrors(d)
	assert.Equal(t, []string{"over", "dog", "the"}, ErrorWords(rows))
	assert.Equal(t, 5, rows[0].Count)
	assert.Empty(t, RankErrors(model.DefaultData()))
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", Sparkline(nil))
	assert.Equal(t, "+++", Sparkline([]float64{5, 5, 5}))
	assert.Equal(t, " @", Sparkline([]float64{1, 9}))
}

func TestRenderTables(t *testing.T) {
	d := record(map[string][]float64{"quick": {30, 50}}, map[string]int{"fox": 1, "dog": 3})

	var buf bytes.Buffer
	require.NoError(t, RenderSlowTable(&buf, RankSlow(d)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "quick  40      2x  @    slow", lines[1])

	buf.Reset()
	require.NoError(t, RenderErrorTable(&buf, RankErrors(d)))
	assert.Contains(t, buf.String(), "dog  3 errors")
	assert.Contains(t, buf.String(), "fox   1 error")

	buf.Reset()
	require.NoError(t, RenderSlowTable(&buf, nil))
	assert.Equal(t, "No slow words tracked yet.\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderPlain(&buf, []string{"dog", "fox"}))
	assert.Equal(t, "dog fox\n", buf.String())
}

func TestLastUpdate(t *testing.T) {
	now := time.Unix(10_000, 0)
	d := model.DefaultData()
	assert.Equal(t, "never", LastUpdate(d, now))
	d.Touch(now.Add(-3 * time.Minute))
	assert.Equal(t, "3 minutes ago", LastUpdate(d, now))
}
