// internal/form/backend.go
//
// Studyhub – Forms subsystem: collaborator contracts.
//
// Context
//   The controller owns validation and state, but never speaks HTTP, renders
//   HTML, or touches storage.  Those concerns arrive through the small
//   interfaces below.  internal/api implements Backend, internal/web
//   implements Navigator and Notifier per request, and internal/localstore
//   implements NotificationLog.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Backend
// -----------------------------------------------------------------------------

// FileState is the per-field change an update expresses.
type FileState int

const (
	FileUnchanged FileState = iota
	FileReplaced
	FileDeleted
)

func (s FileState) String() string {
	switch s {
	case FileReplaced:
		return "replaced"
	case FileDeleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// FileChange describes one upload field at submit time.
type FileChange struct {
	State   FileState
	New     []File
	Kept    []string // existing attachments left in place
	Removed []string // existing attachments the user removed
}

// Submission is the immutable snapshot handed to the Backend.
type Submission struct {
	Kind     Kind
	Mode     Mode
	RecordID string
	ActorID  string
	RefDate  time.Time
	Values   map[string]string
	Files    map[string]FileChange
}

// Snapshot is an existing record mapped onto draft field names.
type Snapshot struct {
	ID          string
	Values      map[string]string
	Attachments map[string][]string
}

// Receipt is the server’s answer to a successful write.
type Receipt struct {
	ID      string
	Message string
}

// Backend persists records.  Implementations return errors that may expose a
// user-facing message through a UserMessage() string method.
type Backend interface {
	Submit(ctx context.Context, s Submission) (Receipt, error)
	Fetch(ctx context.Context, kind Kind, id, actorID string) (Snapshot, error)
	Delete(ctx context.Context, kind Kind, id, actorID string) (Receipt, error)
}

// -----------------------------------------------------------------------------
// Actor, navigation, and notices
// -----------------------------------------------------------------------------

// ActorSource yields the locally identified user, if any.
type ActorSource interface {
	ActorID(ctx context.Context) (string, bool)
}

// ActorFunc adapts a function to ActorSource.
type ActorFunc func(ctx context.Context) (string, bool)

func (f ActorFunc) ActorID(ctx context.Context) (string, bool) { return f(ctx) }

// StaticActor is an ActorSource that always returns id.  An empty id means
// nobody is logged in.
type StaticActor string

func (s StaticActor) ActorID(context.Context) (string, bool) { return string(s), s != "" }

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(route string)
}

// NoticeLevel grades a Notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a blocking, modal-style message.
type Notice struct {
	Level NoticeLevel
	Title string
	Text  string
}

// Notifier presents notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotificationLog is the append-only local activity log.
type NotificationLog interface {
	Append(ctx context.Context, action, recordName string) error
}

// -----------------------------------------------------------------------------
// No-op collaborators
// -----------------------------------------------------------------------------

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}
