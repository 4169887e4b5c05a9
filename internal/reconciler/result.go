package reconciler

import (
	"github.com/google/uuid"
)

// ChannelResult is the per-channel outcome of one transition. Skipped marks
// channels that have no bound platform chat and therefore spent no calls.
type ChannelResult struct {
	ChannelID   uuid.UUID
	ChannelName string
	OK          bool
	Skipped     bool
	Err         error
}

// Result is the partial-failure map for one user transition. NoOp reports a
// user without a platform identity: nothing to reconcile, trivially complete.
type Result struct {
	UserID   uuid.UUID
	NoOp     bool
	Channels map[uuid.UUID]ChannelResult
}

func newResult(userID uuid.UUID) *Result {
	return &Result{
		UserID:   userID,
		Channels: make(map[uuid.UUID]ChannelResult),
	}
}

func (r *Result) record(res ChannelResult) {
	r.Channels[res.ChannelID] = res
}

// Complete reports whether every targeted channel either succeeded or was
// skipped for lack of a platform binding.
func (r *Result) Complete() bool {
	if r == nil {
		return false
	}
	for _, res := range r.Channels {
		if !res.OK && !res.Skipped {
			return false
		}
	}
	return true
}

// Failed returns the channels that spent calls and did not succeed.
func (r *Result) Failed() []ChannelResult {
	var failed []ChannelResult
	for _, res := range r.Channels {
		if !res.OK && !res.Skipped {
			failed = append(failed, res)
		}
	}
	return failed
}

// SkippedChannels returns the channels skipped for lack of a platform chat.
func (r *Result) SkippedChannels() []ChannelResult {
	var skipped []ChannelResult
	for _, res := range r.Channels {
		if res.Skipped {
			skipped = append(skipped, res)
		}
	}
	return skipped
}
