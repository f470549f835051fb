// internal/api/records.go
//
// Routes for read and delete endpoints, and the mapping from server JSON onto
// draft field names.  The backend serialises dates either as "YYYY-MM-DD" or
// as [year, month, day(, …)] arrays depending on the entity, so dates are
// normalised here.  Stored credentials are dropped at decode time and never
// reach a Snapshot.

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yanizio/studyhub/internal/form"
)

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func ownerQuery(actorID string) url.Values {
	if actorID == "" {
		return nil
	}
	return url.Values{"userId": {actorID}}
}

func getRoute(kind form.Kind, id, actorID string) (string, url.Values, error) {
	id = url.PathEscape(id)
	switch kind {
	case form.KindPost, form.KindProgress:
		return "/" + string(kind) + "/" + id, ownerQuery(actorID), nil
	case form.KindBlog:
		return "/blog/get/" + id, nil, nil
	case form.KindProfile:
		return "/user/" + id, nil, nil
	case form.KindLearningPlan:
		return "/api/v1/users/" + id, nil, nil
	}
	return "", nil, fmt.Errorf("api: no get route for kind %q", kind)
}

func deleteRoute(kind form.Kind, id, actorID string) (string, url.Values, error) {
	id = url.PathEscape(id)
	switch kind {
	case form.KindPost, form.KindProgress:
		return "/" + string(kind) + "/" + id, ownerQuery(actorID), nil
	case form.KindBlog:
		return "/blog/" + id, ownerQuery(actorID), nil
	case form.KindProfile:
		return "/user/" + id, nil, nil
	case form.KindLearningPlan:
		return "/api/v1/users/" + id, nil, nil
	}
	return "", nil, fmt.Errorf("api: no delete route for kind %q", kind)
}

func listRoute(kind form.Kind, actorID string) (string, url.Values, error) {
	switch kind {
	case form.KindPost, form.KindProgress:
		return "/" + string(kind), ownerQuery(actorID), nil
	case form.KindBlog:
		return "/blog/user", ownerQuery(actorID), nil
	case form.KindLearningPlan:
		return "/api/v1/users", nil, nil
	}
	return "", nil, fmt.Errorf("api: no list route for kind %q", kind)
}

// -----------------------------------------------------------------------------
// Field mapping
// -----------------------------------------------------------------------------

// fieldMap pairs a server JSON key with a draft field.
type fieldMap struct {
	server string
	draft  string
	date   bool
}

var studyFields = []fieldMap{
	{"name", "name", false},
	{"topic", "topic", false},
	{"description", "description", false},
	{"status", "status", false},
	{"tag", "tag", false},
	{"createdAt", "createdAt", true},
	{"updatedAt", "updatedAt", true},
}

var recordFields = map[form.Kind][]fieldMap{
	form.KindPost:     studyFields,
	form.KindProgress: studyFields,
	form.KindBlog: {
		{"title", "title", false},
		{"content", "content", false},
		{"author", "author", false},
		{"category", "category", false},
		{"createdAt", "createdAt", true},
	},
	form.KindProfile: {
		{"fullname", "fullname", false},
		{"email", "email", false},
		{"phone", "phone", false},
	},
	form.KindLearningPlan: {
		{"name", "name", false},
		{"email", "email", false},
		{"videoLink", "videoLink", false},
		{"age", "views", false},
		{"description", "description", false},
	},
}

// attachmentKeys lists server keys holding file references, in preference
// order, and the draft field they seed.
var attachmentKeys = map[form.Kind]struct {
	server []string
	draft  string
}{
	form.KindPost:     {[]string{"image"}, "image"},
	form.KindProgress: {[]string{"image"}, "image"},
	form.KindBlog:     {[]string{"blogImages", "image"}, "images"},
}

// -----------------------------------------------------------------------------
// Decoding
// -----------------------------------------------------------------------------

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("api: decode record: %w", err)
	}
	return obj, nil
}

func decodeRecord(kind form.Kind, body []byte) (form.Snapshot, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return form.Snapshot{}, err
	}
	return toSnapshot(kind, obj), nil
}

func decodeList(kind form.Kind, body []byte) ([]form.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var arr []map[string]any
	if err := dec.Decode(&arr); err != nil {
		return nil, fmt.Errorf("api: decode list: %w", err)
	}
	out := make([]form.Snapshot, 0, len(arr))
	for _, obj := range arr {
		out = append(out, toSnapshot(kind, obj))
	}
	return out, nil
}

// toSnapshot maps known keys only.  Anything else, including passwords, is
// ignored.
func toSnapshot(kind form.Kind, obj map[string]any) form.Snapshot {
	snap := form.Snapshot{
		ID:          scalar(obj["id"]),
		Values:      make(map[string]string),
		Attachments: make(map[string][]string),
	}
	for _, fm := range recordFields[kind] {
		raw, ok := obj[fm.server]
		if !ok || raw == nil {
			continue
		}
		if fm.date {
			snap.Values[fm.draft] = localDate(raw)
		} else {
			snap.Values[fm.draft] = scalar(raw)
		}
	}
	if ak, ok := attachmentKeys[kind]; ok {
		for _, key := range ak.server {
			if refs := stringList(obj[key]); len(refs) > 0 {
				snap.Attachments[ak.draft] = refs
				break
			}
		}
	}
	return snap
}

// scalar renders a JSON scalar as a string.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// localDate accepts "YYYY-MM-DD", an ISO timestamp, or a [y, m, d, …] array.
func localDate(v any) string {
	switch t := v.(type) {
	case string:
		if len(t) >= 10 {
			return t[:10]
		}
		return t
	case []any:
		if len(t) < 3 {
			return ""
		}
		parts := make([]int, 3)
		for i := 0; i < 3; i++ {
			n, err := strconv.Atoi(scalar(t[i]))
			if err != nil {
				return ""
			}
			parts[i] = n
		}
		return fmt.Sprintf("%04d-%02d-%02d", parts[0], parts[1], parts[2])
	}
	return ""
}

// stringList accepts a single string or an array of strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
