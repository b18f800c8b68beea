package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"tablemail/internal/config"
	"tablemail/internal/model"
	"tablemail/internal/tables"
)

func s(v string) *string { return &v }

type fakeMailbox struct {
	candidates []model.Candidate
	emails     map[string]*model.Email
	listErr    error
	listCalls  int
}

func (f *fakeMailbox) ListCandidates(ctx context.Context, sender string, max int64) ([]model.Candidate, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.candidates, nil
}

func (f *fakeMailbox) GetEmail(ctx context.Context, id string) (*model.Email, error) {
	e, ok := f.emails[id]
	if !ok {
		return nil, errors.New("no such message")
	}
	return e, nil
}

type fakeCapturer struct {
	err    error
	called bool
}

func (f *fakeCapturer) Capture(ctx context.Context, htmlPath, pngPath string) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(pngPath, []byte("png"), 0o644)
}

type fakeReader struct {
	doc    tables.Document
	err    error
	called bool
}

func (f *fakeReader) ReadTables(ctx context.Context, pngPath string) (tables.Document, error) {
	f.called = true
	return f.doc, f.err
}

type fakeSheets struct {
	err    error
	called bool
	got    tables.Document
	path   string
}

func (f *fakeSheets) Write(doc tables.Document, path string) error {
	f.called = true
	f.got = doc
	f.path = path
	return f.err
}

type fakeLedger struct {
	recs   []model.RunRecord
	lastID string
}

func (f *fakeLedger) RecordRun(ctx context.Context, rec model.RunRecord) error {
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeLedger) SetLastMessageID(ctx context.Context, id string) error {
	f.lastID = id
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Sender:     "조이푸드",
		MaxResults: 10,
		OutputDir:  t.TempDir(),
	}
}

func testDeps(mb Mailbox, capt *fakeCapturer, rd *fakeReader, sh *fakeSheets, lg *fakeLedger) Deps {
	return Deps{
		OpenMailbox: func(ctx context.Context) (Mailbox, error) { return mb, nil },
		Capturer:    capt,
		Tables:      rd,
		Sheets:      sh,
		Ledger:      lg,
	}
}

func TestRun_HappyPath(t *testing.T) {
	mb := &fakeMailbox{
		candidates: []model.Candidate{
			{ID: "old", Subject: "2025년09월04일 보고"},
			{ID: "new", Subject: "2025년09월06일 보고"},
		},
		emails: map[string]*model.Email{
			"new": {
				ID:         "new",
				Subject:    "2025년09월06일 보고",
				HTML:       "<table><tr><td>x</td></tr></table>",
				TablesHTML: []string{"<table><tr><td>x</td></tr></table>"},
			},
		},
	}
	capt := &fakeCapturer{}
	rd := &fakeReader{doc: tables.Document{Tables: []tables.Table{{
		Headers: []string{"a", "b"},
		Rows:    [][]*string{{s("1")}},
	}}}}
	sh := &fakeSheets{}
	lg := &fakeLedger{}

	cfg := testConfig(t)
	res := New(cfg, testDeps(mb, capt, rd, sh, lg), quietLogger()).Run(context.Background())

	if !res.Success {
		t.Fatalf("run failed: %s (%v)", res.Message, res.Err)
	}
	if len(res.OutputFiles) != 4 {
		t.Fatalf("outputs = %v, want 4 files", res.OutputFiles)
	}
	if !sh.called {
		t.Fatal("sheet writer never called")
	}
	// writer sees the normalized document, not the raw one
	if !strings.HasSuffix(sh.path, ".xlsx") {
		t.Fatalf("workbook path = %q", sh.path)
	}
	row := sh.got.Tables[0].Rows[0]
	if len(row) != 2 || row[1] != nil {
		t.Fatalf("row not normalized before writing: %v", row)
	}

	// raw inference output is persisted as JSON
	var saved tables.Document
	b, err := os.ReadFile(res.OutputFiles[2])
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	if err := json.Unmarshal(b, &saved); err != nil {
		t.Fatalf("json artifact invalid: %v", err)
	}
	if len(saved.Tables[0].Rows[0]) != 1 {
		t.Fatal("json artifact should hold the raw, un-normalized rows")
	}

	if lg.lastID != "new" {
		t.Fatalf("last message id = %q, want new", lg.lastID)
	}
	if len(lg.recs) != 1 || !lg.recs[0].Success || lg.recs[0].SubjectDate != "20250906" {
		t.Fatalf("ledger record = %+v", lg.recs)
	}
}

func TestRun_TargetDateNotFound(t *testing.T) {
	mb := &fakeMailbox{
		candidates: []model.Candidate{{ID: "a", Subject: "2025년09월04일 보고"}},
	}
	capt := &fakeCapturer{}
	rd := &fakeReader{}
	sh := &fakeSheets{}
	lg := &fakeLedger{}

	cfg := testConfig(t)
	cfg.TargetDate = "20250910"
	res := New(cfg, testDeps(mb, capt, rd, sh, lg), quietLogger()).Run(context.Background())

	if res.Success {
		t.Fatal("run should fail when no subject date matches")
	}
	if !strings.Contains(res.Message, "20250910") {
		t.Fatalf("message = %q, want the missing date named", res.Message)
	}
	if capt.called || rd.called || sh.called {
		t.Fatal("later stages ran after selection failed")
	}
	if len(lg.recs) != 1 || lg.recs[0].Success {
		t.Fatalf("failed run not recorded: %+v", lg.recs)
	}
}

func TestRun_DirectMessageID(t *testing.T) {
	mb := &fakeMailbox{
		emails: map[string]*model.Email{
			"direct": {
				ID:         "direct",
				Subject:    "확정주문 20250902",
				TablesHTML: []string{"<table></table>"},
				HTML:       "<table></table>",
			},
		},
	}
	capt := &fakeCapturer{}
	rd := &fakeReader{doc: tables.Document{Tables: []tables.Table{{Headers: []string{"h"}}}}}
	sh := &fakeSheets{}
	lg := &fakeLedger{}

	cfg := testConfig(t)
	cfg.MessageID = "direct"
	res := New(cfg, testDeps(mb, capt, rd, sh, lg), quietLogger()).Run(context.Background())

	if !res.Success {
		t.Fatalf("run failed: %s (%v)", res.Message, res.Err)
	}
	if mb.listCalls != 0 {
		t.Fatal("direct fetch should not search the mailbox")
	}
	if lg.recs[0].SubjectDate != "20250902" {
		t.Fatalf("subject date = %q", lg.recs[0].SubjectDate)
	}
}

func TestRun_NoTablesFromInference(t *testing.T) {
	mb := &fakeMailbox{
		candidates: []model.Candidate{{ID: "a", Subject: "2025년09월04일 보고"}},
		emails: map[string]*model.Email{
			"a": {ID: "a", Subject: "2025년09월04일 보고", HTML: "<table></table>", TablesHTML: []string{"<table></table>"}},
		},
	}
	capt := &fakeCapturer{}
	rd := &fakeReader{doc: tables.Document{}} // inference found nothing
	sh := &fakeSheets{}
	lg := &fakeLedger{}

	res := New(testConfig(t), testDeps(mb, capt, rd, sh, lg), quietLogger()).Run(context.Background())

	if res.Success {
		t.Fatal("run should fail on an empty table document")
	}
	if !errors.Is(res.Err, tables.ErrNoTables) {
		t.Fatalf("err = %v, want ErrNoTables", res.Err)
	}
	if sh.called {
		t.Fatal("sheet writer ran after validation failure")
	}
	// artifacts produced before the failure are still reported
	if len(res.OutputFiles) != 3 {
		t.Fatalf("outputs = %v, want html/png/json", res.OutputFiles)
	}
}

func TestRun_AuthFailure(t *testing.T) {
	deps := Deps{
		OpenMailbox: func(ctx context.Context) (Mailbox, error) { return nil, errors.New("invalid_grant") },
		Capturer:    &fakeCapturer{},
		Tables:      &fakeReader{},
		Sheets:      &fakeSheets{},
		Ledger:      &fakeLedger{},
	}
	res := New(testConfig(t), deps, quietLogger()).Run(context.Background())
	if res.Success {
		t.Fatal("run should fail when authentication fails")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "invalid_grant") {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestRun_NoHTMLBody(t *testing.T) {
	mb := &fakeMailbox{
		candidates: []model.Candidate{{ID: "a", Subject: "2025년09월04일 보고"}},
		emails:     map[string]*model.Email{"a": {ID: "a", Subject: "2025년09월04일 보고", Text: "plain only"}},
	}
	capt := &fakeCapturer{}
	res := New(testConfig(t), testDeps(mb, capt, &fakeReader{}, &fakeSheets{}, &fakeLedger{}), quietLogger()).Run(context.Background())
	if res.Success {
		t.Fatal("run should fail for a text-only message")
	}
	if capt.called {
		t.Fatal("capture ran without HTML content")
	}
}

func TestCleanFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{`조이 푸드/리포트`, "조이_푸드_리포트"},
		{`a<>:"/\|?*b`, "a_b"},
		{"__x__", "x"},
	}
	for _, tc := range tests {
		if got := cleanFilename(tc.in); got != tc.want {
			t.Errorf("cleanFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// ensure the json artifact path sits in the configured output dir
func TestRun_ArtifactsInOutputDir(t *testing.T) {
	mb := &fakeMailbox{
		candidates: []model.Candidate{{ID: "a", Subject: "09월04일"}},
		emails: map[string]*model.Email{
			"a": {ID: "a", Subject: "09월04일", HTML: "<table></table>", TablesHTML: []string{"<table></table>"}},
		},
	}
	cfg := testConfig(t)
	rd := &fakeReader{doc: tables.Document{Tables: []tables.Table{{Headers: []string{"h"}}}}}
	res := New(cfg, testDeps(mb, &fakeCapturer{}, rd, &fakeSheets{}, &fakeLedger{}), quietLogger()).Run(context.Background())
	if !res.Success {
		t.Fatalf("run failed: %s (%v)", res.Message, res.Err)
	}
	for _, f := range res.OutputFiles {
		if filepath.Dir(f) != cfg.OutputDir {
			t.Errorf("artifact %q outside output dir %q", f, cfg.OutputDir)
		}
	}
}
