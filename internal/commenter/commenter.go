// Package commenter sends source files to a model and overwrites them with
// the commented text it returns.
//
// A run works on either one file or one directory tree. A tree is sent as a
// single JSON payload in a single model call, and the reply is split back
// into per-file writes.
package commenter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/Hekzory/CommentLLM/internal/codec"
	"github.com/Hekzory/CommentLLM/internal/failure"
	"github.com/Hekzory/CommentLLM/internal/metrics"
	"github.com/Hekzory/CommentLLM/internal/provider"
	"github.com/Hekzory/CommentLLM/internal/walker"
)

// Mode is the kind of run selected by the Target.
type Mode string

const (
	ModeFile      Mode = "file"
	ModeDirectory Mode = "directory"
)

// Target names what a run works on. Exactly one field must be set.
type Target struct {
	File      string
	Directory string
}

// Mode returns the run mode the target selects. It is only meaningful once
// ValidateTarget has passed.
func (t Target) Mode() Mode {
	if t.File != "" {
		return ModeFile
	}
	return ModeDirectory
}

// ValidateTarget checks that exactly one of file or directory is given and
// that it exists with the right kind. It never reads file contents.
func ValidateTarget(t Target) error {
	switch {
	case t.File != "" && t.Directory != "":
		return failure.Input("validate", "", "--file and --directory are mutually exclusive")
	case t.File == "" && t.Directory == "":
		return failure.Input("validate", "", "one of --file or --directory is required")
	case t.File != "":
		return validateFile(t.File)
	default:
		return validateDirectory(t.Directory)
	}
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return failure.New(failure.ErrInput, "validate", path, err)
	}
	if info.IsDir() {
		return failure.Input("validate", path, "is a directory, use --directory")
	}
	if !info.Mode().IsRegular() {
		return failure.Input("validate", path, "is not a regular file")
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return failure.Input("validate", path, "is not writable: %v", err)
	}
	return f.Close()
}

func validateDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return failure.New(failure.ErrInput, "validate", path, err)
	}
	if !info.IsDir() {
		return failure.Input("validate", path, "is not a directory, use --file")
	}
	return nil
}

// FileMetrics holds the line metrics of one file before and after commenting.
type FileMetrics struct {
	Before *metrics.Metrics
	After  *metrics.Metrics
}

// Report describes what a run did.
type Report struct {
	Mode Mode
	// Sent lists the files whose content went to the model.
	Sent []string
	// Written lists the files overwritten with commented content.
	Written []string
	// Previewed lists the files rendered instead of written in dry-run mode.
	Previewed []string
	// Unchanged lists the files the model returned verbatim.
	Unchanged []string
	// Missing lists the files sent but absent from the reply.
	Missing []string
	// Extra lists reply keys that were never sent. They are ignored.
	Extra []string
	// Skipped holds per-file errors from reading the tree; those files were not sent.
	Skipped []error
	// Failed holds per-file write errors.
	Failed []error
	// Metrics is keyed by file path.
	Metrics map[string]FileMetrics
}

func newReport(mode Mode) *Report {
	return &Report{Mode: mode, Metrics: make(map[string]FileMetrics)}
}

// FileStore reads and writes the files a run works on.
type FileStore interface {
	ReadFile(path string) (string, error)
	WriteFile(path, content string) error
}

// Commenter orchestrates reading, sending and rewriting files.
type Commenter struct {
	Files  FileStore
	Walker *walker.Walker
	Client provider.Client
	Logger *zap.Logger

	// DryRun renders new content to Output instead of writing it.
	DryRun bool
	Output io.Writer
	// Theme and Formatter are chroma style and formatter names for dry runs.
	Theme     string
	Formatter string

	conv provider.Conversation
	// fingerprints of file contents as read, keyed by path
	fingerprints map[string]uint64
}

// New creates a Commenter with default components.
func New(client provider.Client, logger *zap.Logger) *Commenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commenter{
		Files:        &FileHandler{},
		fingerprints: make(map[string]uint64),
		Walker:       walker.New(nil),
		Client:       client,
		Logger:       logger,
		Output:       os.Stdout,
		Theme:        "dracula",
		Formatter:    "terminal256",
	}
}

// SetConversation seeds the conversation sent with the next model call.
func (c *Commenter) SetConversation(conv provider.Conversation) {
	c.conv = conv
}

// Conversation returns the conversation including every exchange of this run.
func (c *Commenter) Conversation() provider.Conversation {
	return c.conv
}

// Run validates target and comments it.
func (c *Commenter) Run(ctx context.Context, target Target) (*Report, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}
	if target.Mode() == ModeFile {
		return c.CommentFile(ctx, target.File)
	}
	return c.CommentDirectory(ctx, target.Directory)
}

// CommentFile sends one file's text to the model and overwrites the file with
// the reply, minus any code fence around it.
func (c *Commenter) CommentFile(ctx context.Context, path string) (*Report, error) {
	report := newReport(ModeFile)
	log := c.Logger.With(zap.String("path", path))

	content, err := c.read(path)
	if err != nil {
		return report, err
	}

	log.Info("processing file")
	report.Sent = append(report.Sent, path)
	reply, err := c.send(ctx, path, content)
	if err != nil {
		return report, err
	}

	commented := codec.StripFence(reply)
	if strings.TrimSpace(commented) == "" && strings.TrimSpace(content) != "" {
		return report, failure.New(failure.ErrMalformedResponse, "decode", path, errors.New("model returned no content"))
	}

	if err := c.apply(report, path, content, commented); err != nil {
		return report, err
	}
	return report, nil
}

// CommentDirectory walks root, sends every eligible file in one payload and
// writes back each file the reply contains. Files missing from the reply are
// left untouched and reported through a *failure.PartialBatchError.
func (c *Commenter) CommentDirectory(ctx context.Context, root string) (*Report, error) {
	report := newReport(ModeDirectory)

	payload, paths := c.collect(root, report)
	if len(payload) == 0 {
		c.Logger.Info("no eligible files found", zap.String("root", root), zap.Int("skipped", len(report.Skipped)))
		return report, nil
	}

	prompt, err := codec.Encode(payload)
	if err != nil {
		return report, err
	}
	keys := payload.Keys()
	for _, key := range keys {
		report.Sent = append(report.Sent, paths[key])
	}

	c.Logger.Info("processing directory", zap.String("root", root), zap.Int("files", len(payload)))
	reply, err := c.send(ctx, root, prompt)
	if err != nil {
		return report, err
	}

	commented, err := codec.Decode(reply)
	if err != nil {
		return report, err
	}

	var writeErrs []error
	for _, key := range keys {
		content, ok := commented[key]
		if !ok {
			report.Missing = append(report.Missing, paths[key])
			continue
		}
		if err := c.apply(report, paths[key], payload[key], content); err != nil {
			writeErrs = append(writeErrs, err)
		}
	}
	for _, key := range commented.Keys() {
		if _, ok := payload[key]; !ok {
			report.Extra = append(report.Extra, key)
			c.Logger.Debug("ignoring file not sent", zap.String("key", key))
		}
	}

	c.Logger.Info("batch complete",
		zap.Int("returned", len(keys)-len(report.Missing)),
		zap.Float64("coverage", metrics.CalculateCoverage(len(keys)-len(report.Missing), len(keys))),
	)

	var errs []error
	if len(report.Missing) > 0 {
		c.Logger.Warn("reply is missing files", zap.Strings("missing", report.Missing))
		errs = append(errs, &failure.PartialBatchError{Missing: report.Missing})
	}
	errs = append(errs, writeErrs...)
	return report, errors.Join(errs...)
}

// collect reads every eligible file under root into a payload keyed by
// slash-separated paths relative to root. Unreadable entries are recorded in
// the report and left out.
func (c *Commenter) collect(root string, report *Report) (codec.Payload, map[string]string) {
	payload := make(codec.Payload)
	paths := make(map[string]string)

	for path, err := range c.Walker.Walk(root) {
		if err != nil {
			c.Logger.Warn("skipping unreadable entry", zap.Error(err))
			report.Skipped = append(report.Skipped, err)
			continue
		}
		content, err := c.read(path)
		if err != nil {
			c.Logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			report.Skipped = append(report.Skipped, err)
			continue
		}
		key := path
		if rel, err := filepath.Rel(root, path); err == nil {
			key = filepath.ToSlash(rel)
		}
		payload[key] = content
		paths[key] = path
	}
	return payload, paths
}

// read reads path and remembers the fingerprint of what was read.
func (c *Commenter) read(path string) (string, error) {
	content, err := c.Files.ReadFile(path)
	if err != nil {
		return "", err
	}
	if c.fingerprints == nil {
		c.fingerprints = make(map[string]uint64)
	}
	c.fingerprints[path] = xxh3.HashString(content)
	return content, nil
}

// checkUnmodified fails if path no longer holds what was read from it.
func (c *Commenter) checkUnmodified(path string) error {
	want, ok := c.fingerprints[path]
	if !ok {
		return nil
	}
	current, err := c.Files.ReadFile(path)
	if err != nil {
		return err
	}
	if xxh3.HashString(current) != want {
		return failure.IO("write", path, errors.New("file changed on disk while waiting for the model, not overwriting"))
	}
	return nil
}

func (c *Commenter) send(ctx context.Context, path, prompt string) (string, error) {
	reply, conv, err := c.Client.Send(ctx, prompt, c.conv)
	if err != nil {
		return "", failure.New(failure.ErrProvider, "send", path, err)
	}
	c.conv = conv
	return reply, nil
}

// apply writes (or previews) the commented content of one file.
func (c *Commenter) apply(report *Report, path, before, after string) error {
	log := c.Logger.With(zap.String("path", path))

	if before == after {
		log.Info("model returned file unchanged")
		report.Unchanged = append(report.Unchanged, path)
		return nil
	}

	fm := FileMetrics{
		Before: metrics.CalculateMetrics(path, before),
		After:  metrics.CalculateMetrics(path, after),
	}
	report.Metrics[path] = fm
	locDelta, commentDelta := metrics.CalculateDeltaMetrics(fm.Before, fm.After)
	if locDelta != 0 {
		log.Warn("model changed lines of code", zap.Int("before", fm.Before.LOC), zap.Int("after", fm.After.LOC))
	}

	if c.DryRun {
		if err := c.render(path, after); err != nil {
			return failure.IO("render", path, err)
		}
		report.Previewed = append(report.Previewed, path)
		return nil
	}

	err := c.checkUnmodified(path)
	if err == nil {
		err = c.Files.WriteFile(path, after)
	}
	if err != nil {
		log.Error("failed to write file", zap.Error(err))
		report.Failed = append(report.Failed, err)
		return err
	}
	log.Info("file rewritten", zap.Int("comments_added", commentDelta), zap.Float64("comment_ratio", fm.After.CommentRatio()))
	report.Written = append(report.Written, path)
	return nil
}
