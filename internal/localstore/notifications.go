package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/studyhub/internal/metrics"
)

const notificationPrefix = "notifications/"

// Notification is one activity-log entry.
type Notification struct {
	Action     string    `json:"action"`
	RecordName string    `json:"recordName"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifications is the append-only activity log.  Each entry gets its own
// key, "notifications/<unix-nanos>-<uuid>", so concurrent appends never
// overwrite each other and Scan returns them in append order.  Entries are
// never deduplicated or re-sorted.
type Notifications struct {
	store Store
	now   func() time.Time
}

// NewNotifications returns a log backed by s.
func NewNotifications(s Store) *Notifications {
	return &Notifications{store: s, now: time.Now}
}

// Append records action on recordName.  It satisfies form.NotificationLog.
func (n *Notifications) Append(ctx context.Context, action, recordName string) error {
	if strings.TrimSpace(recordName) == "" {
		recordName = "Untitled"
	}
	ts := n.now().UTC()
	raw, err := json.Marshal(Notification{Action: action, RecordName: recordName, Timestamp: ts})
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%020d-%s", notificationPrefix, ts.UnixNano(), uuid.NewString())
	if err := n.store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	metrics.NotificationAppendsTotal.Inc()
	return nil
}

// List returns every entry, oldest first.
func (n *Notifications) List(ctx context.Context) ([]Notification, error) {
	entries, err := n.store.Scan(ctx, notificationPrefix)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]Notification, 0, len(entries))
	for _, e := range entries {
		var nt Notification
		if err := json.Unmarshal(e.Value, &nt); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", e.Key, err)
		}
		out = append(out, nt)
	}
	return out, nil
}

// Clear empties the log.
func (n *Notifications) Clear(ctx context.Context) error {
	return n.store.Clear(ctx, notificationPrefix)
}
