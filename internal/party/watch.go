package party

import (
	"context"
	"encoding/json"

	"github.com/curry-conqueror/NSTEM-Final/internal/kvstore"
)

// PollInterval is how often a local store re-reads a watched party.
const PollInterval = kvstore.DefaultPollInterval

// SubscribeToParty invokes fn with every snapshot of the party until the
// subscription is cancelled. fn receives nil while the party does not exist.
// Snapshots that fail to decode are logged and skipped.
func (r *Repository) SubscribeToParty(ctx context.Context, code string, fn func(*Party)) (*kvstore.Subscription, error) {
	code, err := normalize(code)
	if err != nil {
		return nil, err
	}
	return r.store.Subscribe(ctx, partyPath(code), func(raw json.RawMessage) {
		if raw == nil {
			fn(nil)
			return
		}
		var p Party
		if err := json.Unmarshal(raw, &p); err != nil {
			r.logger.Warn("skipping undecodable party snapshot", "code", code, "error", err)
			return
		}
		fn(&p)
	})
}

// Redirect reports the code clients should move to after Play Again.
func (p *Party) Redirect() (string, bool) {
	if p == nil || p.RedirectToCode == "" {
		return "", false
	}
	return p.RedirectToCode, true
}
