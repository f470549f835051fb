// internal/form/actions.go
//
// Studyhub – Forms subsystem: post-submit actions.
//
// Context
//   A FormDef may declare actions that run after a successful save or delete.
//   ExecuteActions dispatches to runNotify or runLog.  Actions are best
//   effort: errors are logged and never returned, so a broken notification
//   log cannot fail a submission the backend already accepted.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ActionCtx carries request-scoped helpers for action execution.
type ActionCtx struct {
	Ctx        context.Context
	Log        NotificationLog
	Logger     *zap.SugaredLogger
	RecordName string
}

// ExecuteActions performs every action declared for event ("create",
// "update", or "delete").
func ExecuteActions(fd *FormDef, event string, data map[string]string, actx ActionCtx) {
	if actx.Logger == nil {
		actx.Logger = zap.S()
	}
	if actx.Ctx == nil {
		actx.Ctx = context.Background()
	}
	for _, ac := range fd.Actions {
		if ac.On != event {
			continue
		}
		switch ac.Type {
		case "notify":
			if err := runNotify(ac.Params, actx); err != nil {
				logErr(actx, fd.Kind, "notify", err)
			}
		case "log":
			runLog(fd, event, data, actx)
		default:
			logWarn(actx, fd.Kind, ac.Type, "unsupported action")
		}
	}
}

// -----------------------------------------------------------------------------
// Notify action
// -----------------------------------------------------------------------------

// runNotify appends {action, recordName, timestamp} to the notification log.
// The action label comes from the `label` parameter.
func runNotify(p map[string]any, actx ActionCtx) (err error) {
	if actx.Log == nil {
		return errors.New("no notification log configured")
	}
	label, _ := p["label"].(string)
	if label == "" {
		return errors.New("'label' parameter missing")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification log panic: %v", r)
		}
	}()
	return actx.Log.Append(actx.Ctx, label, actx.RecordName)
}

// -----------------------------------------------------------------------------
// Log action
// -----------------------------------------------------------------------------

func runLog(fd *FormDef, event string, data map[string]string, actx ActionCtx) {
	actx.Logger.Infow("record saved",
		"kind", fd.Kind, "event", event, "record", actx.RecordName, "fields", len(data))
}

// -----------------------------------------------------------------------------
// Logging helpers
// -----------------------------------------------------------------------------

func logErr(actx ActionCtx, kind Kind, action string, err error) {
	actx.Logger.Errorw("form action failed",
		"kind", kind, "action", action, "error", err.Error())
}

func logWarn(actx ActionCtx, kind Kind, action, msg string) {
	actx.Logger.Warnw("form action warning",
		"kind", kind, "action", action, "warning", msg)
}
