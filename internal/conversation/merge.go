// Package conversation assembles what a user sees for one conversation:
// persisted history reconciled with messages pushed over the live connection.
package conversation

import (
	"sort"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/samber/lo"
)

// Scope identifies a conversation from Self's point of view. An empty
// ListingID spans every listing the two users talked about.
type Scope struct {
	Self      string
	Peer      string
	ListingID string
}

func (s Scope) Contains(m domain.Message) bool {
	return m.Involves(s.Self, s.Peer, s.ListingID)
}

// Merge returns the messages of history and live that belong to scope, each id
// once, ordered by creation time. History wins when both carry the same id.
// Messages created at the same instant keep their input order.
func Merge(history, live []domain.Message, scope Scope) []domain.Message {
	all := make([]domain.Message, 0, len(history)+len(live))
	all = append(all, history...)
	all = append(all, live...)

	merged := lo.UniqBy(
		lo.Filter(all, func(m domain.Message, _ int) bool { return scope.Contains(m) }),
		func(m domain.Message) string { return m.ID },
	)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}
