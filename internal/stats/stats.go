// Package stats ranks the tracked words and renders them as tables.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/weakwords/internal/model"
)

const sparkChars = " .:-=+*#%@"

// SpeedClass places a word within the range of the shown speeds.
type SpeedClass string

const (
	SpeedSlow   SpeedClass = "slow"
	SpeedMedium SpeedClass = ""
	SpeedFast   SpeedClass = "fast"
)

// SlowRow is one ranked slow word.
type SlowRow struct {
	Word     string
	AvgSpeed float64
	Count    int
	Samples  []float64
	Class    SpeedClass
}

// ErrorRow is one ranked errored word.
type ErrorRow struct {
	Word  string
	Count int
}

// RankSlow returns the slowest words with at least minSamples samples,
// slowest first, limited to wordsToShow.
func RankSlow(data model.Data) []SlowRow {
	s := data.Settings
	minSamples := s.MinSamples
	if minSamples < 1 {
		minSamples = model.DefaultMinSamples
	}
	rows := make([]SlowRow, 0, len(data.SlowWords))
	for word, sw := range data.SlowWords {
		if sw == nil || len(sw.Samples) < minSamples {
			continue
		}
		rows = append(rows, SlowRow{
			Word:     word,
			AvgSpeed: sw.AvgSpeed,
			Count:    sw.Count,
			Samples:  sw.Samples,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AvgSpeed == rows[j].AvgSpeed {
			return rows[i].Word < rows[j].Word
		}
		return rows[i].AvgSpeed < rows[j].AvgSpeed
	})
	rows = rows[:limit(len(rows), s.WordsToShow)]
	if len(rows) == 0 {
		return rows
	}

	lo, hi := rows[0].AvgSpeed, rows[len(rows)-1].AvgSpeed
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for i := range rows {
		pos := (rows[i].AvgSpeed - lo) / span
		switch {
		case pos < 0.33:
			rows[i].Class = SpeedSlow
		case pos > 0.66:
			rows[i].Class = SpeedFast
		}
	}
	return rows
}

// RankErrors returns the most errored words first, limited to wordsToShow.
func RankErrors(data model.Data) []ErrorRow {
	rows := make([]ErrorRow, 0, len(data.ErroredWords))
	for word, count := range data.ErroredWords {
		rows = append(rows, ErrorRow{Word: word, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Word < rows[j].Word
		}
		return rows[i].Count > rows[j].Count
	})
	return rows[:limit(len(rows), data.Settings.WordsToShow)]
}

func limit(n, wordsToShow int) int {
	if wordsToShow <= 0 {
		wordsToShow = model.DefaultWordsShown
	}
	if n > wordsToShow {
		return wordsToShow
	}
	return n
}

// SlowWords returns the words of rows in rank order.
func SlowWords(rows []SlowRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Word
	}
	return out
}

// ErrorWords returns the words of rows in rank order.
func ErrorWords(rows []ErrorRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Word
	}
	return out
}

// Plural formats an error count the way the lists show it.
func Plural(count int) string {
	if count == 1 {
		return "1 error"
	}
	return fmt.Sprintf("%d errors", count)
}

// LastUpdate describes when the record was last written.
func LastUpdate(data model.Data, now time.Time) string {
	ts := data.LastUpdateTime()
	if ts.IsZero() {
		return "never"
	}
	return humanize.RelTime(ts, now, "ago", "from now")
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSlowTable prints the ranked slow words.
func RenderSlowTable(w io.Writer, rows []SlowRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No slow words tracked yet.")
		return err
	}
	headers := []string{"Word", "WPM", "Samples", "Trend", ""}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{
			r.Word,
			fmt.Sprintf("%.0f", r.AvgSpeed),
			fmt.Sprintf("%dx", r.Count),
			Sparkline(r.Samples),
			string(r.Class),
		})
	}
	return writeLines(w, formatTable(headers, tableRows, map[int]bool{1: true, 2: true}))
}

// RenderErrorTable prints the ranked errored words.
func RenderErrorTable(w io.Writer, rows []ErrorRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No error words tracked yet.")
		return err
	}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{r.Word, Plural(r.Count)})
	}
	return writeLines(w, formatTable([]string{"Word", "Errors"}, tableRows, map[int]bool{1: true}))
}

// RenderPlain prints the words space-joined on one line.
func RenderPlain(w io.Writer, words []string) error {
	_, err := fmt.Fprintln(w, strings.Join(words, " "))
	return err
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
