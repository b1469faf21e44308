// Package model defines shared data structures.
package model

import "time"

// DefaultKey is the key the aggregate record is stored under.
const DefaultKey = "wordTrackerData"

// Settings clamps applied on save.
const (
	MinWordsToShow    = 5
	MaxWordsToShow    = 200
	MinMinSamples     = 1
	MaxMinSamples     = 10
	MinHistoryCount   = 1
	MaxHistoryCount   = 500
	DefaultWordsShown = 50
	DefaultMinSamples = 1
	DefaultHistory    = 50
)

// Settings holds the user-configurable parameters stored with the record.
type Settings struct {
	WordsToShow                 int     `json:"wordsToShow"`
	MinSamples                  int     `json:"minSamples"`
	SlowThreshold               float64 `json:"slowThreshold"`
	DisableTrackingInCustomMode bool    `json:"disableTrackingInCustomMode"`
	SlowWordHistoryCount        int     `json:"slowWordHistoryCount"`
}

// SlowWord aggregates speed samples for one word.
type SlowWord struct {
	Count    int       `json:"count"`
	AvgSpeed float64   `json:"avgSpeed"`
	Samples  []float64 `json:"samples"`
}

// Data is the single persisted aggregate record.
type Data struct {
	SlowWords    map[string]*SlowWord `json:"slowWords"`
	ErroredWords map[string]int       `json:"erroredWords"`
	Settings     Settings             `json:"settings"`
	LastUpdate   int64                `json:"lastUpdate"`
}

// DefaultSettings returns the documented settings defaults.
func DefaultSettings() Settings {
	return Settings{
		WordsToShow:                 DefaultWordsShown,
		MinSamples:                  DefaultMinSamples,
		SlowThreshold:               0,
		DisableTrackingInCustomMode: true,
		SlowWordHistoryCount:        DefaultHistory,
	}
}

// DefaultData returns an empty record with default settings.
func DefaultData() Data {
	return Data{
		SlowWords:    map[string]*SlowWord{},
		ErroredWords: map[string]int{},
		Settings:     DefaultSettings(),
	}
}

// Normalize fills nil maps left behind by a stored null.
func (d *Data) Normalize() {
	if d.SlowWords == nil {
		d.SlowWords = map[string]*SlowWord{}
	}
	if d.ErroredWords == nil {
		d.ErroredWords = map[string]int{}
	}
	for word, sw := range d.SlowWords {
		if sw == nil {
			delete(d.SlowWords, word)
		}
	}
}

// Touch stamps the record with the write time.
func (d *Data) Touch(now time.Time) {
	d.LastUpdate = now.UnixMilli()
}

// LastUpdateTime returns LastUpdate as a time, zero when never written.
func (d Data) LastUpdateTime() time.Time {
	if d.LastUpdate <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(d.LastUpdate)
}

// HistoryCap returns the sliding-window cap, never below one.
func (s Settings) HistoryCap() int {
	if s.SlowWordHistoryCount < MinHistoryCount {
		return MinHistoryCount
	}
	return s.SlowWordHistoryCount
}

// Clamp bounds the settings to their accepted ranges.
func (s Settings) Clamp() Settings {
	s.WordsToShow = clampInt(s.WordsToShow, MinWordsToShow, MaxWordsToShow)
	s.MinSamples = clampInt(s.MinSamples, MinMinSamples, MaxMinSamples)
	s.SlowWordHistoryCount = clampInt(s.SlowWordHistoryCount, MinHistoryCount, MaxHistoryCount)
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
