package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxCommentLength bounds a comment in characters.
const MaxCommentLength = 500

var (
	ErrEmptyComment   = errors.New("comment cannot be empty")
	ErrCommentTooLong = fmt.Errorf("comment cannot exceed %d characters", MaxCommentLength)
	ErrNotAuthor      = errors.New("only the author can change this comment")
)

// Target identifies the record a social action applies to.  Name is only
// used for notification entries.
type Target struct {
	Kind string
	ID   string
	Name string
}

func (t Target) key(prefix string) string { return prefix + t.Kind + "/" + t.ID }

// Comment is one entry in a record’s thread.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Summary is what a record page shows for the current actor.
type Summary struct {
	Likes     int       `json:"likes"`
	Follows   int       `json:"follows"`
	Liked     bool      `json:"liked"`
	Following bool      `json:"following"`
	Comments  []Comment `json:"comments"`
}

// Social keeps likes, follows, and comments.  Likes and follows are sets of
// actor ids so a user counts once; every change is appended to the
// notification log when one is configured.
type Social struct {
	store Store
	log   *Notifications
	now   func() time.Time
}

// NewSocial returns a Social backed by s.  log may be nil.
func NewSocial(s Store, log *Notifications) *Social {
	return &Social{store: s, log: log, now: time.Now}
}

// -----------------------------------------------------------------------------
// Likes and follows
// -----------------------------------------------------------------------------

// ToggleLike flips actor’s like and returns the new state and count.
func (s *Social) ToggleLike(ctx context.Context, t Target, actor string) (bool, int, error) {
	on, n, err := s.toggle(ctx, t.key("likes/"), actor)
	if err == nil {
		s.notify(ctx, pick(on, "liked", "unliked"), t)
	}
	return on, n, err
}

// ToggleFollow flips actor’s follow and returns the new state and count.
func (s *Social) ToggleFollow(ctx context.Context, t Target, actor string) (bool, int, error) {
	on, n, err := s.toggle(ctx, t.key("follows/"), actor)
	if err == nil {
		s.notify(ctx, pick(on, "followed", "unfollowed"), t)
	}
	return on, n, err
}

func (s *Social) toggle(ctx context.Context, key, actor string) (bool, int, error) {
	if actor == "" {
		return false, 0, errors.New("toggle needs an actor")
	}
	var on bool
	var count int
	err := s.store.Update(ctx, key, func(old []byte, exists bool) ([]byte, error) {
		on = false
		set, err := decodeSet(old, exists)
		if err != nil {
			return nil, err
		}
		if _, ok := set[actor]; ok {
			delete(set, actor)
		} else {
			set[actor] = struct{}{}
			on = true
		}
		count = len(set)
		if count == 0 {
			return nil, nil
		}
		return encodeSet(set)
	})
	if err != nil {
		return false, 0, fmt.Errorf("toggle %s: %w", key, err)
	}
	return on, count, nil
}

func decodeSet(raw []byte, exists bool) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if !exists {
		return set, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func encodeSet(set map[string]struct{}) ([]byte, error) {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return json.Marshal(ids)
}

func (s *Social) members(ctx context.Context, key string) (map[string]struct{}, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSet(raw, true)
}

// -----------------------------------------------------------------------------
// Comments
// -----------------------------------------------------------------------------

func checkComment(text string) (string, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return "", ErrEmptyComment
	case utf8.RuneCountInString(text) > MaxCommentLength:
		return "", ErrCommentTooLong
	}
	return text, nil
}

// AddComment appends a comment to t’s thread.
func (s *Social) AddComment(ctx context.Context, t Target, actor, text string) (Comment, error) {
	text, err := checkComment(text)
	if err != nil {
		return Comment{}, err
	}
	c := Comment{ID: uuid.NewString(), Author: actor, Text: text, CreatedAt: s.now().UTC()}
	err = s.editThread(ctx, t, func(thread []Comment) ([]Comment, error) {
		return append(thread, c), nil
	})
	if err != nil {
		return Comment{}, err
	}
	s.notify(ctx, "commented", t)
	return c, nil
}

// EditComment replaces the text of one of actor’s comments.
func (s *Social) EditComment(ctx context.Context, t Target, commentID, actor, text string) error {
	text, err := checkComment(text)
	if err != nil {
		return err
	}
	err = s.editThread(ctx, t, func(thread []Comment) ([]Comment, error) {
		i, err := findComment(thread, commentID, actor)
		if err != nil {
			return nil, err
		}
		thread[i].Text = text
		thread[i].UpdatedAt = s.now().UTC()
		return thread, nil
	})
	if err == nil {
		s.notify(ctx, "updated comment", t)
	}
	return err
}

// DeleteComment removes one of actor’s comments.
func (s *Social) DeleteComment(ctx context.Context, t Target, commentID, actor string) error {
	err := s.editThread(ctx, t, func(thread []Comment) ([]Comment, error) {
		i, err := findComment(thread, commentID, actor)
		if err != nil {
			return nil, err
		}
		return append(thread[:i], thread[i+1:]...), nil
	})
	if err == nil {
		s.notify(ctx, "deleted comment", t)
	}
	return err
}

// Comments returns t’s thread, oldest first.
func (s *Social) Comments(ctx context.Context, t Target) ([]Comment, error) {
	raw, err := s.store.Get(ctx, t.key("comments/"))
	if errors.Is(err, ErrNotFound) {
		return []Comment{}, nil
	}
	if err != nil {
		return nil, err
	}
	var thread []Comment
	if err := json.Unmarshal(raw, &thread); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return thread, nil
}

func (s *Social) editThread(ctx context.Context, t Target, fn func([]Comment) ([]Comment, error)) error {
	return s.store.Update(ctx, t.key("comments/"), func(old []byte, exists bool) ([]byte, error) {
		var thread []Comment
		if exists {
			if err := json.Unmarshal(old, &thread); err != nil {
				return nil, fmt.Errorf("decode comments: %w", err)
			}
		}
		thread, err := fn(thread)
		if err != nil {
			return nil, err
		}
		if len(thread) == 0 {
			return nil, nil
		}
		return json.Marshal(thread)
	})
}

func findComment(thread []Comment, id, actor string) (int, error) {
	for i, c := range thread {
		if c.ID != id {
			continue
		}
		if c.Author != actor {
			return 0, ErrNotAuthor
		}
		return i, nil
	}
	return 0, ErrNotFound
}

// -----------------------------------------------------------------------------
// Summary
// -----------------------------------------------------------------------------

// Summary collects counters and the thread for t as seen by actor.
func (s *Social) Summary(ctx context.Context, t Target, actor string) (Summary, error) {
	likes, err := s.members(ctx, t.key("likes/"))
	if err != nil {
		return Summary{}, err
	}
	follows, err := s.members(ctx, t.key("follows/"))
	if err != nil {
		return Summary{}, err
	}
	thread, err := s.Comments(ctx, t)
	if err != nil {
		return Summary{}, err
	}
	_, liked := likes[actor]
	_, following := follows[actor]
	return Summary{
		Likes:     len(likes),
		Follows:   len(follows),
		Liked:     liked,
		Following: following,
		Comments:  thread,
	}, nil
}

// notify is best effort; the social change already happened.
func (s *Social) notify(ctx context.Context, action string, t Target) {
	if s.log == nil {
		return
	}
	if err := s.log.Append(ctx, action, t.Name); err != nil {
		zap.S().Warnw("notification append failed", "action", action, "kind", t.Kind, "id", t.ID, "error", err)
	}
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
