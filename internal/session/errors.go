package session

// ErrorDetector reports each erroneous word slot once per session.
type ErrorDetector struct {
	rec Recorder
}

// NewErrorDetector returns a detector reporting to rec.
func NewErrorDetector(rec Recorder) *ErrorDetector {
	return &ErrorDetector{rec: rec}
}

// Check scans every rendered slot.
func (d *ErrorDetector) Check(s *Session, doc Slots) {
	for _, slot := range doc.Slots() {
		if !slot.HasError || slot.Target == "" {
			continue
		}
		key := SlotKey{Index: slot.Index, Text: slot.Target}
		if _, seen := s.Errored[key]; seen {
			continue
		}
		s.Errored[key] = struct{}{}
		d.rec.RecordError(slot.Target)
	}
}
