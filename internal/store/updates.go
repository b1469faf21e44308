package store

import (
	"fmt"

	"github.com/verte-zerg/weakwords/internal/model"
)

// List names one of the two tracked word lists.
type List string

// Word lists.
const (
	ListSlow   List = "slow"
	ListErrors List = "errors"
)

// ParseList accepts "slow" and "error"/"errors".
func ParseList(s string) (List, error) {
	switch s {
	case "slow":
		return ListSlow, nil
	case "error", "errors":
		return ListErrors, nil
	}
	return "", fmt.Errorf("unknown list %q (use slow or errors)", s)
}

// RecordSlowWord appends a speed sample for word. The sliding-window cap is
// taken from the record being updated, not from any cached settings.
func RecordSlowWord(word string, wpm float64) Updater {
	return func(d *model.Data) error {
		if word == "" || wpm <= 0 {
			return nil
		}
		entry, ok := d.SlowWords[word]
		if !ok {
			entry = &model.SlowWord{}
			d.SlowWords[word] = entry
		}
		entry.Count++
		entry.Samples = append(entry.Samples, wpm)
		limit := d.Settings.HistoryCap()
		if len(entry.Samples) > limit {
			trimmed := make([]float64, limit)
			copy(trimmed, entry.Samples[len(entry.Samples)-limit:])
			entry.Samples = trimmed
		}
		entry.AvgSpeed = mean(entry.Samples)
		return nil
	}
}

// RecordError increments the error count for word.
func RecordError(word string) Updater {
	return func(d *model.Data) error {
		if word == "" {
			return nil
		}
		d.ErroredWords[word]++
		return nil
	}
}

// DeleteWord removes one word from a list.
func DeleteWord(list List, word string) Updater {
	return func(d *model.Data) error {
		switch list {
		case ListSlow:
			delete(d.SlowWords, word)
		case ListErrors:
			delete(d.ErroredWords, word)
		default:
			return fmt.Errorf("unknown list %q", list)
		}
		return nil
	}
}

// ClearList empties one list and keeps everything else.
func ClearList(list List) Updater {
	return func(d *model.Data) error {
		switch list {
		case ListSlow:
			d.SlowWords = map[string]*model.SlowWord{}
		case ListErrors:
			d.ErroredWords = map[string]int{}
		default:
			return fmt.Errorf("unknown list %q", list)
		}
		return nil
	}
}

// ClearAll empties both lists and keeps the settings.
func ClearAll() Updater {
	return func(d *model.Data) error {
		d.SlowWords = map[string]*model.SlowWord{}
		d.ErroredWords = map[string]int{}
		return nil
	}
}

// SaveSettings stores s after clamping it to the accepted ranges.
func SaveSettings(s model.Settings) Updater {
	return func(d *model.Data) error {
		d.Settings = s.Clamp()
		return nil
	}
}

// MergeImport shallow-merges a validated import into the record. Imported
// words replace existing entries with the same key. Imported samples are cut
// to the record's history cap and the average is recomputed from what is kept.
func MergeImport(in Import) Updater {
	return func(d *model.Data) error {
		limit := d.Settings.HistoryCap()
		for word, sw := range in.SlowWords {
			if sw == nil {
				continue
			}
			samples := sw.Samples
			if len(samples) > limit {
				samples = samples[len(samples)-limit:]
			}
			copied := model.SlowWord{
				Count:    sw.Count,
				AvgSpeed: sw.AvgSpeed,
				Samples:  append([]float64(nil), samples...),
			}
			if len(copied.Samples) > 0 {
				copied.AvgSpeed = mean(copied.Samples)
			}
			d.SlowWords[word] = &copied
		}
		for word, count := range in.ErroredWords {
			d.ErroredWords[word] = count
		}
		return nil
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
