package autosave

import "encoding/json"

// Detector decides whether the current snapshot differs from the last one
// persisted or sent. Comparison is structural, via canonical JSON
// serialization and string compare; edit frequency is human-paced, so
// O(size) per check is acceptable.
//
// Ties break toward dirty: a snapshot that fails to serialize is reported
// dirty. False positives are acceptable, false negatives are not.
type Detector struct {
	last string
}

func NewDetector() *Detector {
	return &Detector{}
}

// Dirty reports whether snap differs from the baseline. It does not move
// the baseline; call MarkClean once the snapshot has been persisted/sent.
func (d *Detector) Dirty(snap Snapshot) bool {
	cur, err := canonical(snap)
	if err != nil {
		return true
	}
	return cur != d.last
}

// MarkClean records snap as the new baseline. A serialization failure
// leaves the baseline untouched, so the next Dirty check stays dirty.
func (d *Detector) MarkClean(snap Snapshot) {
	cur, err := canonical(snap)
	if err != nil {
		return
	}
	d.last = cur
}

// canonical serializes a snapshot deterministically. encoding/json sorts
// map keys, which is all the canonicalization we need.
func canonical(snap Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
