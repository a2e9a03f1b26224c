// Package messaging holds the chat view-model rules: each message id is
// delivered once per subscription, threads read oldest first, the inbox
// reads newest first.
package messaging

import (
	"sort"
	"sync"

	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/utils"
)

// Deduper remembers the message ids already delivered to one subscriber.
// Snapshot and change-stream deliveries overlap, so both pass through it.
type Deduper struct {
	mu   sync.Mutex
	seen map[utils.SixID]struct{}
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[utils.SixID]struct{})}
}

// Admit returns true the first time id is offered and false afterwards.
func (d *Deduper) Admit(id utils.SixID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// AdmitAll filters msgs down to unseen ids (also dropping repeats within
// msgs) and returns them in ascending timestamp order.
func (d *Deduper) AdmitAll(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if d.Admit(m.ID) {
			out = append(out, m)
		}
	}
	SortThread(out)
	return out
}

// Has reports whether id was admitted and not forgotten since.
func (d *Deduper) Has(id utils.SixID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Forget drops id so a later delivery is admitted again (used when a
// message is removed).
func (d *Deduper) Forget(id utils.SixID) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

// Len is the number of ids seen so far.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// SortThread orders messages oldest first; ties keep id order so repeated
// renders are stable.
func SortThread(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].CreatedAt, msgs[j].CreatedAt
		if a.Equal(b) {
			return msgs[i].ID.String() < msgs[j].ID.String()
		}
		return a.Before(b)
	})
}

// SortInbox orders conversations by latest activity, newest first.
func SortInbox(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i].LatestActivity(), convs[j].LatestActivity()
		if a.Equal(b) {
			return convs[i].ID.String() < convs[j].ID.String()
		}
		return a.After(b)
	})
}

// UnreadFor returns the unread counter for participant id.
func UnreadFor(c *models.Conversation, id utils.SixID) int {
	if c.Unread == nil {
		return 0
	}
	return c.Unread[id.String()]
}
