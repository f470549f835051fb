// internal/form/renderer.go
//
// Studyhub – Forms subsystem: HTML renderer.
//
// Context
//   Given a controller’s View this file converts the form definition into
//   plain, accessible HTML.  The renderer applies HTML5 validation
//   attributes, shows current values and field messages, lists existing
//   attachments with a removal checkbox, and injects a CSRF token.
//
// Workflow
//   •  Controller.View captures definition, values, messages, and kept
//      attachments under the controller lock.
//   •  Render writes each field via writeField and returns template.HTML so
//      the surrounding page template does not double-escape the markup.
//   •  Password inputs are never prefilled.
//
// Style
//   Output HTML carries no framework classes.  Each input gets
//   id="fld-{name}" and is wrapped in <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"time"
)

// View is a render-ready copy of a controller’s state.
type View struct {
	Def      *FormDef
	Mode     Mode
	Action   string // form action URL
	Values   map[string]string
	Errors   Result
	Existing map[string][]string
	Notice   *Notice
	MinDate  string // floor for not_before_today fields
}

// View snapshots the controller for rendering.  Only touched fields carry
// messages, so a fresh form renders without error noise.
func (c *Controller) View(action string) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Def:      c.def,
		Mode:     c.opts.Mode,
		Action:   action,
		Values:   c.draft.Values(),
		Errors:   make(Result),
		Existing: make(map[string][]string),
		MinDate:  c.vctx.Today(),
	}
	for _, f := range c.def.FieldsFor(c.opts.Mode) {
		if c.draft.Touched(f.Name) && c.errs[f.Name] != "" {
			v.Errors[f.Name] = c.errs[f.Name]
		}
		if f.Type.IsFile() {
			v.Existing[f.Name] = append([]string(nil), c.draft.Existing(f.Name)...)
		}
	}
	return v
}

// Render returns the HTML markup for v.
func Render(v View) (template.HTML, error) {
	if v.Def == nil {
		return "", fmt.Errorf("Render: nil form definition")
	}

	var buf bytes.Buffer
	buf.WriteString(`<form class="studyhub-form" method="post" enctype="multipart/form-data" action="` +
		html.EscapeString(v.Action) + `" novalidate>` + "\n")

	if v.Notice != nil {
		buf.WriteString(`<div class="notice notice-` + html.EscapeString(string(v.Notice.Level)) + `" role="alert">`)
		if v.Notice.Title != "" {
			buf.WriteString(`<strong>` + html.EscapeString(v.Notice.Title) + `</strong> `)
		}
		buf.WriteString(html.EscapeString(v.Notice.Text) + `</div>` + "\n")
	}

	for _, f := range v.Def.FieldsFor(v.Mode) {
		if err := writeField(&buf, &f, v); err != nil {
			return "", err
		}
	}

	buf.WriteString(fmt.Sprintf(`<input type="hidden" name="csrf_token" value="%s">`+"\n", csrfGenerateToken()))
	label := "Create"
	if v.Mode == ModeUpdate {
		label = "Update"
	}
	buf.WriteString(`<button type="submit">` + label + ` ` + html.EscapeString(v.Def.Title) + `</button>` + "\n")
	buf.WriteString(`</form>`)
	return template.HTML(buf.String()), nil
}

// writeField emits HTML for an individual field into buf.
func writeField(buf *bytes.Buffer, f *FieldDef, v View) error {
	val := v.Values[f.Name]
	name := html.EscapeString(f.Name)

	buf.WriteString(`<div class="form-field">` + "\n")
	idAttr := `id="fld-` + name + `"`
	nameAttr := `name="` + name + `"`
	buf.WriteString(`<label for="fld-` + name + `">` + html.EscapeString(f.Label) + `</label>` + "\n")

	switch f.Type {
	case TypeText, TypeEmail, TypePhone, TypeURL, TypeNumber, TypeDate, TypePassword:
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="` + string(f.Type) + `"`)
		writeCommonAttrs(buf, f)
		if f.Pattern != "" {
			buf.WriteString(` pattern="` + html.EscapeString(f.Pattern) + `"`)
		}
		if f.Type == TypeNumber {
			buf.WriteString(` min="0"`)
		}
		if f.NotBeforeRef {
			buf.WriteString(` min="` + html.EscapeString(v.MinDate) + `"`)
		}
		if val != "" && f.Type != TypePassword {
			buf.WriteString(` value="` + html.EscapeString(val) + `"`)
		}
		buf.WriteString(`>` + "\n")

	case TypeTextarea:
		buf.WriteString(`<textarea ` + idAttr + ` ` + nameAttr)
		writeCommonAttrs(buf, f)
		buf.WriteString(`>` + html.EscapeString(val) + `</textarea>` + "\n")

	case TypeSelect:
		buf.WriteString(`<select ` + idAttr + ` ` + nameAttr)
		if f.Required {
			buf.WriteString(` required`)
		}
		buf.WriteString(`>` + "\n")
		buf.WriteString(`<option value="">Select ` + html.EscapeString(f.Label) + `</option>` + "\n")
		for _, opt := range f.Options {
			sel := ""
			if val == opt {
				sel = ` selected`
			}
			buf.WriteString(`<option value="` + html.EscapeString(opt) + `"` + sel + `>` + html.EscapeString(opt) + `</option>` + "\n")
		}
		buf.WriteString(`</select>` + "\n")

	case TypeImage, TypeImages:
		for _, ref := range v.Existing[f.Name] {
			buf.WriteString(`<label class="attachment"><input type="checkbox" name="` + RemovedKey +
				`" value="` + name + `:` + html.EscapeString(ref) + `"> Remove ` + html.EscapeString(ref) + `</label>` + "\n")
		}
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="file" accept="image/*"`)
		if f.Type == TypeImages {
			buf.WriteString(` multiple`)
			if f.MaxFiles > 0 {
				buf.WriteString(` data-max-files="` + strconv.Itoa(f.MaxFiles) + `"`)
			}
		}
		if f.Required && len(v.Existing[f.Name]) == 0 {
			buf.WriteString(` required`)
		}
		buf.WriteString(`>` + "\n")

	default:
		return fmt.Errorf("writeField: unsupported field type %q in form field %s", f.Type, f.Name)
	}

	buf.WriteString(`<span class="error" aria-live="polite">` + html.EscapeString(v.Errors[f.Name]) + `</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
	return nil
}

func writeCommonAttrs(buf *bytes.Buffer, f *FieldDef) {
	if f.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
	}
	if f.Required {
		buf.WriteString(` required`)
	}
	if f.MinLength > 0 {
		buf.WriteString(` minlength="` + strconv.Itoa(f.MinLength) + `"`)
	}
	if f.MaxLength > 0 {
		buf.WriteString(` maxlength="` + strconv.Itoa(f.MaxLength) + `"`)
	}
}

// csrfGenerateToken falls back to a token that never verifies when the
// random source fails, so the POST is rejected instead of the render.
func csrfGenerateToken() string {
	token, err := GenerateToken()
	if err != nil {
		return fmt.Sprintf("invalid-%d", time.Now().UnixNano())
	}
	return token
}
