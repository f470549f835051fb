// internal/form/validate_test.go
//
// Unit-tests for field, file, and whole-draft validation.
//
// Run: go test ./internal/form -v

package form

import (
	"strings"
	"testing"
	"time"
)

var testRef = ValidationContext{RefDate: time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)}

func mustDef(t *testing.T, k Kind) *FormDef {
	t.Helper()
	MustLoadDefaults()
	fd, ok := Lookup(k)
	if !ok {
		t.Fatalf("no definition for %s", k)
	}
	return fd
}

func mustField(t *testing.T, k Kind, name string) FieldDef {
	t.Helper()
	f, ok := mustDef(t, k).Field(name)
	if !ok {
		t.Fatalf("%s has no field %s", k, name)
	}
	return f
}

func TestValidateField_RequiredText(t *testing.T) {
	for _, k := range Kinds {
		for _, f := range mustDef(t, k).Fields {
			if !f.Required || f.Type.IsFile() {
				continue
			}
			for _, blank := range []string{"", "   ", "\t\n"} {
				if msg := ValidateField(f, blank, testRef); msg == "" {
					t.Errorf("%s.%s: blank %q accepted", k, f.Name, blank)
				}
			}
		}
	}
}

func TestValidateField_RequiredMessage(t *testing.T) {
	got := ValidateField(mustField(t, KindPost, "topic"), "  ", testRef)
	if got != "Topic is required" {
		t.Fatalf("got %q", got)
	}
	got = ValidateField(mustField(t, KindProgress, "status"), "", testRef)
	if got != "Please select a status" {
		t.Fatalf("status message %q", got)
	}
}

func TestValidateField_NamePatternAndLength(t *testing.T) {
	name := mustField(t, KindPost, "name")
	cases := []struct {
		in   string
		want string
	}{
		{"A1", "Name can only contain letters and spaces"},
		{"Al", ""},
		{"A", "Name must be between 2 and 50 characters"},
		{"Ada Lovelace", ""},
		{strings.Repeat("a", 51), "Name must be between 2 and 50 characters"},
	}
	for _, c := range cases {
		if got := ValidateField(name, c.in, testRef); got != c.want {
			t.Errorf("name %q: got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateField_DescriptionBounds(t *testing.T) {
	desc := mustField(t, KindPost, "description")
	msg := ValidateField(desc, "abcdefghi", testRef)
	if !strings.Contains(msg, "10") || !strings.Contains(msg, "500") {
		t.Fatalf("9 chars: got %q, want message citing 10 and 500", msg)
	}
	if msg := ValidateField(desc, "abcdefghij", testRef); msg != "" {
		t.Fatalf("10 chars: got %q", msg)
	}
}

func TestValidateField_OptionalTag(t *testing.T) {
	tag := mustField(t, KindPost, "tag")
	if msg := ValidateField(tag, "", testRef); msg != "" {
		t.Fatalf("empty tag: %q", msg)
	}
	if msg := ValidateField(tag, strings.Repeat("x", 50), testRef); msg != "" {
		t.Fatalf("50 chars: %q", msg)
	}
	if msg := ValidateField(tag, strings.Repeat("x", 51), testRef); msg != "Tag cannot exceed 50 characters" {
		t.Fatalf("51 chars: %q", msg)
	}
}

func TestValidateField_FormatRules(t *testing.T) {
	email := mustField(t, KindProfile, "email")
	phone := mustField(t, KindProfile, "phone")
	link := mustField(t, KindLearningPlan, "videoLink")
	views := mustField(t, KindLearningPlan, "views")

	checks := []struct {
		f     FieldDef
		in    string
		valid bool
	}{
		{email, "student@example.com", true},
		{email, "student@example", false},
		{email, "stu dent@example.com", false},
		{phone, "call me maybe", true},
		{link, "https://youtu.be/abc123", true},
		{link, "www.example.com/watch?v=1", true},
		{link, "not a url", false},
		{views, "12", true},
		{views, "0", false},
		{views, "-3", false},
		{views, "many", false},
	}
	for _, c := range checks {
		msg := ValidateField(c.f, c.in, testRef)
		if (msg == "") != c.valid {
			t.Errorf("%s %q: got %q, valid=%v", c.f.Name, c.in, msg, c.valid)
		}
	}
}

func TestValidateField_DateFloor(t *testing.T) {
	created := mustField(t, KindPost, "createdAt")
	cases := map[string]string{
		"2025-03-13": "Created date must be today or later",
		"2025-03-14": "",
		"2025-03-15": "",
		"":           "Created date is required",
		"14/03/2025": "Created must be a valid date (YYYY-MM-DD)",
	}
	for in, want := range cases {
		if got := ValidateField(created, in, testRef); got != want {
			t.Errorf("date %q: got %q, want %q", in, got, want)
		}
	}
}

func TestValidateFiles_Image(t *testing.T) {
	img := mustField(t, KindPost, "image")

	if got := ValidateFiles(img, nil, 0); got != "Image is required" {
		t.Fatalf("missing: %q", got)
	}
	if got := ValidateFiles(img, nil, 1); got != "" {
		t.Fatalf("kept attachment should satisfy required: %q", got)
	}

	big := File{Name: "big.png", Type: "image/png", Size: MaxImageBytes + 1}
	if got := ValidateFiles(img, []File{big}, 0); got != "Image size must not exceed 5MB" {
		t.Fatalf("oversize: %q", got)
	}
	txt := File{Name: "notes.txt", Type: "text/plain", Size: 1024}
	if got := ValidateFiles(img, []File{txt}, 0); got != "File must be an image (JPEG, PNG, GIF)" {
		t.Fatalf("wrong type: %q", got)
	}
	bigTxt := File{Name: "dump.txt", Type: "text/plain", Size: MaxImageBytes * 2}
	if got := ValidateFiles(img, []File{bigTxt}, 0); !strings.HasPrefix(got, "File must be an image") {
		t.Fatalf("wrong type and size: %q", got)
	}
	edge := File{Name: "edge.jpg", Type: "image/jpeg", Size: MaxImageBytes}
	if got := ValidateFiles(img, []File{edge}, 0); got != "" {
		t.Fatalf("exactly 5 MiB: %q", got)
	}
}

func TestValidateFiles_OptionalImage(t *testing.T) {
	img := mustField(t, KindProgress, "image")
	if got := ValidateFiles(img, nil, 0); got != "" {
		t.Fatalf("absent optional: %q", got)
	}
	if got := ValidateFiles(img, []File{{Name: "a.gif", Type: "text/html", Size: 10}}, 0); got == "" {
		t.Fatalf("bad type accepted")
	}
}

func TestValidateFiles_Gallery(t *testing.T) {
	gal := mustField(t, KindBlog, "images")
	ok := File{Name: "ok.png", Type: "image/png", Size: 100}

	if got := ValidateFiles(gal, nil, 0); got != "" {
		t.Fatalf("empty optional gallery: %q", got)
	}
	six := []File{ok, ok, ok, ok, ok, ok}
	if got := ValidateFiles(gal, six, 0); got != "You can upload at most 5 images" {
		t.Fatalf("six new: %q", got)
	}
	if got := ValidateFiles(gal, []File{ok, ok}, 4); got == "" {
		t.Fatalf("kept plus new over cap accepted")
	}

	bad := []File{ok, {Name: "a.txt", Type: "text/plain", Size: 1}, {Name: "b.png", Type: "image/png", Size: MaxImageBytes + 1}}
	got := ValidateFiles(gal, bad, 0)
	if !strings.Contains(got, "a.txt: File must be an image") || !strings.Contains(got, "b.png: Image size") {
		t.Fatalf("combined message: %q", got)
	}
}

func TestValidateDraft_StatusEmpty(t *testing.T) {
	fd := mustDef(t, KindProgress)
	d := NewDraft()
	d.Set("name", "Ada")
	d.Set("topic", "Graphs")
	d.Set("description", "Shortest paths and spanning trees")
	d.Set("status", "")

	res := ValidateDraft(fd, d, ModeCreate, testRef)
	if res.Valid() {
		t.Fatalf("empty status passed")
	}
	if res["status"] == "" {
		t.Fatalf("status has no message: %#v", res)
	}
	if fields := res.Fields(); len(fields) != 1 || fields[0] != "status" {
		t.Fatalf("unexpected failing fields %v", fields)
	}
}

func TestValidateDraft_UpdateSkipsCreateOnlyAndBlankPassword(t *testing.T) {
	post := mustDef(t, KindPost)
	for _, f := range post.FieldsFor(ModeUpdate) {
		if f.Name == "createdAt" {
			t.Fatalf("createdAt present in update mode")
		}
	}

	prof := mustDef(t, KindProfile)
	d := NewDraft()
	d.Set("fullname", "Ada Lovelace")
	d.Set("email", "ada@example.com")
	d.Set("phone", "0771234567")
	if res := ValidateDraft(prof, d, ModeUpdate, testRef); !res.Valid() {
		t.Fatalf("blank password rejected: %#v", res)
	}
	d.Set("password", "abc")
	if res := ValidateDraft(prof, d, ModeUpdate, testRef); res["password"] == "" {
		t.Fatalf("short password accepted")
	}
}
