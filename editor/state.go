package editor

import "github.com/meridianpress/draftsync/models"

// DraftState is the lifecycle state of one in-progress draft.
//
//	Clean → Dirty (on edit) → Saving (on tick, dirty, remote save configured)
//	Saving → Clean | SaveFailed
//	SaveFailed → Dirty (on the next tick; the timer is the retry mechanism)
//
// Discarded and Published are terminal; both clear the local draft store.
type DraftState string

const (
	StateClean      DraftState = "clean"
	StateDirty      DraftState = "dirty"
	StateSaving     DraftState = "saving"
	StateSaveFailed DraftState = "save_failed"
	StateDiscarded  DraftState = "discarded"
	StatePublished  DraftState = "published"
)

func (s DraftState) terminal() bool {
	return s == StateDiscarded || s == StatePublished
}

// UIState is the facade's view of one collection: the latest entity array
// pushed by the subscription, replaced wholesale on each delivery.
type UIState struct {
	Entities []models.RemoteEntity
	Loading  bool
	Err      error
}
