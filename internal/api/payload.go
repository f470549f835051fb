// internal/api/payload.go
//
// Request encoding per record kind.  Field names match the backend’s
// controllers exactly; a renamed key is a silent data loss on the server
// side, so each kind has its own encoder rather than a generic map copy.
//
//	post / progress create   multipart, discrete fields + file
//	post / progress update   multipart, "<kind> details" JSON part + file
//	blog create / update     multipart, newImages (repeated), imagesToDelete
//	profile update           JSON
//	register                 JSON, POST /user
//	learning plan            JSON

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/yanizio/studyhub/internal/form"
)

// encode builds the HTTP request for sub.
func (c *Client) encode(ctx context.Context, sub form.Submission) (*http.Request, error) {
	switch sub.Kind {
	case form.KindPost, form.KindProgress:
		if sub.Mode == form.ModeCreate {
			return c.studyCreate(ctx, sub)
		}
		return c.studyUpdate(ctx, sub)
	case form.KindBlog:
		return c.blog(ctx, sub)
	case form.KindProfile:
		return c.profile(ctx, sub)
	case form.KindLearningPlan:
		return c.learningPlan(ctx, sub)
	case form.KindRegister:
		return c.register(ctx, sub)
	default:
		return nil, fmt.Errorf("api: no encoder for kind %q", sub.Kind)
	}
}

// -----------------------------------------------------------------------------
// Posts and progress entries
// -----------------------------------------------------------------------------

func (c *Client) studyCreate(ctx context.Context, sub form.Submission) (*http.Request, error) {
	mb := newMultipart()
	for _, k := range []string{"name", "topic", "description", "status", "tag"} {
		mb.field(k, sub.Values[k])
	}
	if sub.Kind == form.KindPost {
		mb.field("createdAt", sub.Values["createdAt"])
	}
	mb.field("userId", sub.ActorID)
	if err := mb.files("file", sub.Files["image"].New); err != nil {
		return nil, err
	}
	return c.multipartRequest(ctx, http.MethodPost, "/"+string(sub.Kind), nil, mb)
}

// studyDetails is the JSON bundled into the update part.
type studyDetails struct {
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Tag         string `json:"tag"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt"`
}

func (c *Client) studyUpdate(ctx context.Context, sub form.Submission) (*http.Request, error) {
	details, err := json.Marshal(studyDetails{
		Name:        sub.Values["name"],
		Topic:       sub.Values["topic"],
		Description: sub.Values["description"],
		Status:      sub.Values["status"],
		Tag:         sub.Values["tag"],
		CreatedAt:   sub.Values["createdAt"],
		UpdatedAt:   sub.RefDate.Format(form.DateLayout),
	})
	if err != nil {
		return nil, err
	}

	mb := newMultipart()
	if err := mb.json(string(sub.Kind)+" details", details); err != nil {
		return nil, err
	}
	img := sub.Files["image"]
	switch img.State {
	case form.FileReplaced:
		if err := mb.files("file", img.New); err != nil {
			return nil, err
		}
	case form.FileDeleted:
		// The update endpoint can only replace an image, never clear it.
		c.log.Warnw("image removal not supported by backend, keeping existing",
			"kind", sub.Kind, "id", sub.RecordID, "removed", img.Removed)
	}

	q := url.Values{"userId": {sub.ActorID}}
	return c.multipartRequest(ctx, http.MethodPut, "/"+string(sub.Kind)+"/"+url.PathEscape(sub.RecordID), q, mb)
}

// -----------------------------------------------------------------------------
// Blogs
// -----------------------------------------------------------------------------

func (c *Client) blog(ctx context.Context, sub form.Submission) (*http.Request, error) {
	mb := newMultipart()
	for _, k := range []string{"title", "content", "author", "category"} {
		mb.field(k, sub.Values[k])
	}
	mb.field("userId", sub.ActorID)
	gallery := sub.Files["images"]
	if err := mb.files("newImages", gallery.New); err != nil {
		return nil, err
	}

	if sub.Mode == form.ModeCreate {
		return c.multipartRequest(ctx, http.MethodPost, "/blog/add", nil, mb)
	}
	if len(gallery.Removed) > 0 {
		del, err := json.Marshal(gallery.Removed)
		if err != nil {
			return nil, err
		}
		mb.field("imagesToDelete", string(del))
	}
	return c.multipartRequest(ctx, http.MethodPut, "/blog/update/"+url.PathEscape(sub.RecordID), nil, mb)
}

// -----------------------------------------------------------------------------
// JSON kinds
// -----------------------------------------------------------------------------

// profile sends the password only when the user typed a new one.
func (c *Client) profile(ctx context.Context, sub form.Submission) (*http.Request, error) {
	body := map[string]string{
		"fullname": sub.Values["fullname"],
		"email":    sub.Values["email"],
		"phone":    sub.Values["phone"],
	}
	if pw := sub.Values["password"]; strings.TrimSpace(pw) != "" {
		body["password"] = pw
	}
	return c.jsonRequest(ctx, http.MethodPut, "/user/"+url.PathEscape(sub.RecordID), body)
}

// register creates an account.  The backend answers with the stored user.
func (c *Client) register(ctx context.Context, sub form.Submission) (*http.Request, error) {
	body := map[string]string{
		"fullname": sub.Values["fullname"],
		"email":    sub.Values["email"],
		"password": sub.Values["password"],
		"phone":    sub.Values["phone"],
	}
	return c.jsonRequest(ctx, http.MethodPost, "/user", body)
}

type learningPlanBody struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	VideoLink   string  `json:"videoLink"`
	Age         float64 `json:"age"` // the backend stores view counts in “age”
	Description string  `json:"description"`
}

func (c *Client) learningPlan(ctx context.Context, sub form.Submission) (*http.Request, error) {
	views, err := strconv.ParseFloat(sub.Values["views"], 64)
	if err != nil {
		return nil, fmt.Errorf("api: views %q: %w", sub.Values["views"], err)
	}
	body := learningPlanBody{
		Name:        sub.Values["name"],
		Email:       sub.Values["email"],
		VideoLink:   sub.Values["videoLink"],
		Age:         views,
		Description: sub.Values["description"],
	}
	if sub.Mode == form.ModeCreate {
		return c.jsonRequest(ctx, http.MethodPost, "/api/v1/users", body)
	}
	return c.jsonRequest(ctx, http.MethodPut, "/api/v1/users/"+url.PathEscape(sub.RecordID), body)
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, v any) (*http.Request, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, path, nil, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// -----------------------------------------------------------------------------
// Multipart builder
// -----------------------------------------------------------------------------

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody accumulates parts and remembers the first error so call
// sites stay linear.
type multipartBody struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newMultipart() *multipartBody {
	mb := &multipartBody{}
	mb.w = multipart.NewWriter(&mb.buf)
	return mb
}

func (mb *multipartBody) field(name, value string) {
	if mb.err != nil {
		return
	}
	mb.err = mb.w.WriteField(name, value)
}

func (mb *multipartBody) json(name string, raw []byte) error {
	if mb.err != nil {
		return mb.err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", "application/json")
	pw, err := mb.w.CreatePart(h)
	if err != nil {
		mb.err = err
		return err
	}
	_, mb.err = pw.Write(raw)
	return mb.err
}

// files writes each upload with its declared MIME type.
func (mb *multipartBody) files(name string, files []form.File) error {
	for _, f := range files {
		if mb.err != nil {
			return mb.err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(name), quoteEscaper.Replace(f.Name)))
		ct := f.Type
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		pw, err := mb.w.CreatePart(h)
		if err != nil {
			mb.err = err
			return err
		}
		if f.Open == nil {
			mb.err = fmt.Errorf("api: file %s has no content", f.Name)
			return mb.err
		}
		rc, err := f.Open()
		if err != nil {
			mb.err = fmt.Errorf("api: open %s: %w", f.Name, err)
			return mb.err
		}
		_, err = io.Copy(pw, rc)
		rc.Close()
		if err != nil {
			mb.err = fmt.Errorf("api: copy %s: %w", f.Name, err)
			return mb.err
		}
	}
	return mb.err
}

func (c *Client) multipartRequest(ctx context.Context, method, path string, q url.Values, mb *multipartBody) (*http.Request, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	if err := mb.w.Close(); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, path, q, bytes.NewReader(mb.buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mb.w.FormDataContentType())
	return req, nil
}
