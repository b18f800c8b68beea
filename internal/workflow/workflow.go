// Package workflow sequences the five pipeline stages: authenticate, select a
// message, fetch and extract its tables, rasterize and infer, write the
// workbook. Each stage depends on the previous one succeeding; any failure
// aborts the rest and is folded into a structured RunResult instead of
// crashing the process.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"tablemail/internal/config"
	"tablemail/internal/model"
	"tablemail/internal/pick"
	"tablemail/internal/tables"
)

// Mailbox is the slice of the Gmail client the workflow needs.
type Mailbox interface {
	ListCandidates(ctx context.Context, sender string, max int64) ([]model.Candidate, error)
	GetEmail(ctx context.Context, id string) (*model.Email, error)
}

// Capturer renders an HTML file to a PNG.
type Capturer interface {
	Capture(ctx context.Context, htmlPath, pngPath string) error
}

// TableReader recovers structured tables from a table image.
type TableReader interface {
	ReadTables(ctx context.Context, pngPath string) (tables.Document, error)
}

// SheetWriter emits a normalized table document as a workbook.
type SheetWriter interface {
	Write(doc tables.Document, path string) error
}

// Ledger records run outcomes. Recording is best-effort: a ledger failure is
// logged but never turns a successful run into a failed one.
type Ledger interface {
	RecordRun(ctx context.Context, rec model.RunRecord) error
	SetLastMessageID(ctx context.Context, id string) error
}

// Deps are the collaborators injected into the workflow. OpenMailbox runs the
// OAuth flow, so it is a constructor rather than a ready client: auth is the
// first stage and its failure belongs in the RunResult like any other.
type Deps struct {
	OpenMailbox func(ctx context.Context) (Mailbox, error)
	Capturer    Capturer
	Tables      TableReader
	Sheets      SheetWriter
	Ledger      Ledger
}

// Workflow owns one pipeline invocation.
type Workflow struct {
	cfg    config.Config
	deps   Deps
	logger *log.Logger
}

func New(cfg config.Config, deps Deps, logger *log.Logger) *Workflow {
	return &Workflow{cfg: cfg, deps: deps, logger: logger}
}

// Run executes the pipeline once and always returns a structured result. The
// outcome is appended to the ledger before returning.
func (w *Workflow) Run(ctx context.Context) model.RunResult {
	start := time.Now()
	res, email := w.run(ctx, start)
	res.Elapsed = time.Since(start)

	if w.deps.Ledger != nil {
		rec := model.RunRecord{
			StartedAt:   start,
			Success:     res.Success,
			Message:     res.Message,
			OutputFiles: res.OutputFiles,
			Elapsed:     res.Elapsed,
		}
		if email != nil {
			rec.MessageID = email.ID
			rec.Subject = email.Subject
			rec.SubjectDate, _ = pick.SubjectDate(email.Subject)
		}
		if err := w.deps.Ledger.RecordRun(ctx, rec); err != nil {
			w.logger.Warn("could not record run", "err", err)
		}
	}
	return res
}

func (w *Workflow) run(ctx context.Context, start time.Time) (model.RunResult, *model.Email) {
	w.logger.Info("pipeline started")

	mailbox, err := w.deps.OpenMailbox(ctx)
	if err != nil {
		return w.fail("gmail authentication failed", err), nil
	}
	w.logger.Info("authenticated")

	email, res, ok := w.selectAndFetch(ctx, mailbox)
	if !ok {
		return res, email
	}

	if !email.HasHTML() && !email.HasTables() {
		return w.fail("message has no HTML content to render", nil), email
	}

	var content string
	if email.HasTables() {
		w.logger.Info("extracted table markup", "tables", len(email.TablesHTML))
		content = tables.WrapDocument(email.TablesHTML)
	} else {
		w.logger.Warn("no <table> markup found, rendering full body")
		content = tables.WrapBody(email.HTML)
	}

	base := cleanFilename(w.cfg.Sender) + "_" + start.Format("20060102_150405")
	if w.cfg.Sender == "" {
		base = cleanFilename(email.ID) + "_" + start.Format("20060102_150405")
	}
	htmlPath := filepath.Join(w.cfg.OutputDir, base+".html")
	pngPath := filepath.Join(w.cfg.OutputDir, base+".png")
	jsonPath := filepath.Join(w.cfg.OutputDir, base+".json")
	xlsxPath := filepath.Join(w.cfg.OutputDir, base+".xlsx")

	outputs := []string{htmlPath}
	if err := os.WriteFile(htmlPath, []byte(content), 0o644); err != nil {
		return w.fail("could not save html file", err), email
	}
	w.logger.Info("html saved", "file", htmlPath)

	if err := w.deps.Capturer.Capture(ctx, htmlPath, pngPath); err != nil {
		return w.failWith(outputs, "could not render html to image", err), email
	}
	outputs = append(outputs, pngPath)

	doc, err := w.deps.Tables.ReadTables(ctx, pngPath)
	if err != nil {
		return w.failWith(outputs, "table inference failed", err), email
	}

	if err := saveJSON(doc, jsonPath); err != nil {
		return w.failWith(outputs, "could not save inference output", err), email
	}
	outputs = append(outputs, jsonPath)

	norm, err := tables.Normalize(doc)
	if err != nil {
		return w.failWith(outputs, "inference returned no tables", err), email
	}

	if err := w.deps.Sheets.Write(norm, xlsxPath); err != nil {
		return w.failWith(outputs, "could not write workbook", err), email
	}
	outputs = append(outputs, xlsxPath)

	if w.deps.Ledger != nil {
		if err := w.deps.Ledger.SetLastMessageID(ctx, email.ID); err != nil {
			w.logger.Warn("could not update last message id", "err", err)
		}
	}

	w.logger.Info("pipeline complete", "outputs", len(outputs))
	return model.RunResult{
		Success:     true,
		Message:     "pipeline completed",
		InputFile:   htmlPath,
		OutputFiles: outputs,
	}, email
}

// selectAndFetch resolves which message to process (a direct id, a matching
// subject date, or the most recent) and fetches its body.
func (w *Workflow) selectAndFetch(ctx context.Context, mailbox Mailbox) (*model.Email, model.RunResult, bool) {
	if w.cfg.MessageID != "" {
		w.logger.Info("fetching message directly", "id", w.cfg.MessageID)
		email, err := mailbox.GetEmail(ctx, w.cfg.MessageID)
		if err != nil {
			return nil, w.fail("could not fetch message", err), false
		}
		return email, model.RunResult{}, true
	}

	candidates, err := mailbox.ListCandidates(ctx, w.cfg.Sender, w.cfg.MaxResults)
	if err != nil {
		return nil, w.fail("could not list candidate messages", err), false
	}

	var (
		chosen model.Candidate
		ok     bool
	)
	if w.cfg.TargetDate != "" {
		chosen, ok = pick.ByDate(candidates, w.cfg.TargetDate)
		if !ok {
			return nil, w.fail(fmt.Sprintf("no message with subject date %s", w.cfg.TargetDate), nil), false
		}
		w.logger.Info("selected by date", "id", chosen.ID, "subject", chosen.Subject)
	} else {
		chosen, ok = pick.Latest(candidates)
		if !ok {
			return nil, w.fail("no candidate messages to select from", nil), false
		}
		date, _ := pick.SubjectDate(chosen.Subject)
		w.logger.Info("selected most recent", "id", chosen.ID, "subject", chosen.Subject, "date", date)
	}

	email, err := mailbox.GetEmail(ctx, chosen.ID)
	if err != nil {
		return nil, w.fail("could not fetch selected message", err), false
	}
	return email, model.RunResult{}, true
}

func (w *Workflow) fail(msg string, err error) model.RunResult {
	return w.failWith(nil, msg, err)
}

func (w *Workflow) failWith(outputs []string, msg string, err error) model.RunResult {
	if err != nil {
		w.logger.Error(msg, "err", err)
	} else {
		w.logger.Error(msg)
	}
	return model.RunResult{
		Success:     false,
		Message:     msg,
		OutputFiles: outputs,
		Err:         err,
	}
}

func saveJSON(doc tables.Document, path string) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// cleanFilename replaces characters that are unsafe in file names with
// underscores and collapses the result.
func cleanFilename(name string) string {
	for _, c := range `<>:"/\|?*` {
		name = strings.ReplaceAll(name, string(c), "_")
	}
	name = strings.ReplaceAll(name, " ", "_")
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}
