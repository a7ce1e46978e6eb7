// Package workflow runs the classroom operations end to end: find the
// reachable devices, ask for confirmation, copy, and report.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/agent462/lanshare/internal/discover"
	"github.com/agent462/lanshare/internal/executor"
	"github.com/agent462/lanshare/internal/fleet"
	"github.com/agent462/lanshare/internal/progress"
	"github.com/agent462/lanshare/internal/transfer"
)

// ErrAborted is returned when the user declined to continue.
var ErrAborted = errors.New("aborted by user")

// Decision is the answer to a confirmation question.
type Decision int

const (
	Proceed Decision = iota
	Abort
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, title, message string) (Decision, error)
}

// Notification categories, as understood by desktop notification daemons.
const (
	CategoryNetwork  = "network"
	CategoryError    = "transfer.error"
	CategoryComplete = "transfer.complete"
)

// Notification is a short message about the outcome of a step.
type Notification struct {
	Category string
	Title    string
	Message  string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(n Notification) error
}

// Display shows the progress of sig under title until the returned stop
// function is called.
type Display interface {
	Start(title string, sig *progress.Signal) (stop func())
}

// Discoverer finds the reachable devices of a fleet.
type Discoverer interface {
	Discover(ctx context.Context, f fleet.Fleet, sig *progress.Signal) (*discover.Result, error)
}

// Batcher copies one folder per device.
type Batcher interface {
	Batch(ctx context.Context, devices []int, srcOf, dstOf transfer.PathFunc, sig *progress.Signal) (*transfer.Report, error)
}

// Runner wires the engines to the user-facing collaborators.
type Runner struct {
	fleet      fleet.Fleet
	discoverer Discoverer
	batcher    Batcher
	confirmer  Confirmer
	notifier   Notifier
	display    Display
	archiver   Archiver
	assumeYes  bool
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfirmer sets who is asked before copying.
func WithConfirmer(c Confirmer) Option {
	return func(r *Runner) {
		if c != nil {
			r.confirmer = c
		}
	}
}

// WithNotifier sets where outcome notifications go.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithDisplay sets the progress display.
func WithDisplay(d Display) Option {
	return func(r *Runner) {
		if d != nil {
			r.display = d
		}
	}
}

// WithArchiver sets how the fetch folder is archived.
func WithArchiver(a Archiver) Option {
	return func(r *Runner) {
		if a != nil {
			r.archiver = a
		}
	}
}

// WithAssumeYes skips the confirmation question.
func WithAssumeYes(yes bool) Option {
	return func(r *Runner) { r.assumeYes = yes }
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runner for f. Without options it proceeds without asking,
// drops notifications and shows no progress.
func New(f fleet.Fleet, d Discoverer, b Batcher, opts ...Option) *Runner {
	r := &Runner{
		fleet:      f,
		discoverer: d,
		batcher:    b,
		confirmer:  alwaysProceed{},
		notifier:   discardNotifier{},
		display:    noDisplay{},
		archiver:   ZipArchiver{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchOptions controls Fetch.
type FetchOptions struct {
	// ArchivePath, if set, receives a zip of the fetch folder afterwards.
	ArchivePath string
}

// Fetch collects every reachable device's exchange folder into its own
// local fetch subfolder.
func (r *Runner) Fetch(ctx context.Context, opts FetchOptions) error {
	report, err := r.run(ctx, job{
		title:    "Fetch",
		question: "Files can be fetched from the following student computers:",
		done:     "Fetching has finished",
		srcOf:    r.fleet.ExchangeSpec,
		dstOf:    r.fleet.FetchDir,
	})
	if report == nil || opts.ArchivePath == "" {
		return err
	}

	// Archive whatever was collected, even if some devices failed.
	if aerr := r.archiver.Archive(r.fleet.Fetch, opts.ArchivePath); aerr != nil {
		r.notify(CategoryError, "Archive failed", aerr.Error())
		return errors.Join(err, fmt.Errorf("archive fetch folder: %w", aerr))
	}
	r.notify(CategoryComplete, "Archive saved", opts.ArchivePath)
	return err
}

// ShareOptions controls ShareEach.
type ShareOptions struct {
	// Clear empties each per-device share folder whose transfer succeeded.
	Clear bool
}

// ShareEach hands every reachable device the contents of its own local
// share subfolder.
func (r *Runner) ShareEach(ctx context.Context, opts ShareOptions) error {
	report, err := r.run(ctx, job{
		title:    "Share",
		question: "Files can be returned to the following student computers:",
		done:     "Returning files has finished",
		srcOf:    r.fleet.ShareDir,
		dstOf:    r.fleet.ExchangeSpec,
	})
	if report == nil || !opts.Clear {
		return err
	}

	var cerrs []error
	for _, d := range report.Succeeded {
		if cerr := clearDir(r.fleet.ShareDir(d)); cerr != nil {
			cerrs = append(cerrs, cerr)
		}
	}
	if len(cerrs) > 0 {
		return errors.Join(append([]error{err}, cerrs...)...)
	}
	r.logger.Debug("share folders cleared", "devices", r.fleet.DescribeDevices(report.Succeeded))
	return err
}

// ShareAll hands every reachable device the common share-all folder.
func (r *Runner) ShareAll(ctx context.Context) error {
	_, err := r.run(ctx, job{
		title:    "Share to all",
		question: "Files can be handed out to the following student computers:",
		done:     "Handing out files has finished",
		srcOf:    r.fleet.ShareAllDir,
		dstOf:    r.fleet.ExchangeSpec,
	})
	return err
}

type job struct {
	title    string
	question string
	done     string
	srcOf    transfer.PathFunc
	dstOf    transfer.PathFunc
}

// run performs discover, confirm, batch and notify. The report is non-nil
// whenever the batch ran to completion, including partial failure.
func (r *Runner) run(ctx context.Context, j job) (*transfer.Report, error) {
	log := r.logger.With("run", uuid.NewString(), "workflow", j.title)

	sig := progress.New()
	stop := r.display.Start("Searching for student computers", sig)
	found, err := r.discoverer.Discover(ctx, r.fleet, sig)
	stop()

	switch {
	case errors.Is(err, discover.ErrAllUnreachable):
		r.notify(CategoryError, "Search", "No student computer could be reached")
		return nil, err
	case err != nil:
		r.notifyFailure(err)
		return nil, err
	}
	r.notify(CategoryNetwork, "Search", fmt.Sprintf("Found %d student computers", len(found.Reachable)))
	log.Info("discovery finished", "reachable", len(found.Reachable), "unreachable", len(found.Unreachable))

	if !r.assumeYes {
		decision, err := r.confirmer.Confirm(ctx, j.title, r.question(j.question, found))
		if err != nil {
			return nil, fmt.Errorf("confirm: %w", err)
		}
		if decision != Proceed {
			r.notifyFailure(ErrAborted)
			return nil, ErrAborted
		}
	}

	sig = progress.New()
	stop = r.display.Start(j.title, sig)
	report, err := r.batcher.Batch(ctx, found.Reachable, j.srcOf, j.dstOf, sig)
	stop()
	if report != nil {
		log.Info("batch finished", "succeeded", len(report.Succeeded), "failed", len(report.Failed))
	}

	var pf *transfer.PartialFailureError
	switch {
	case errors.As(err, &pf):
		r.notify(CategoryError, j.title+" incomplete", r.describeFailure(pf))
		return report, err
	case err != nil:
		r.notifyFailure(err)
		return nil, err
	}

	r.notify(CategoryComplete, j.title+" finished", j.done)
	return report, nil
}

// question builds the confirmation text. Unreachable devices are listed
// so the user can decide whether to go on without them.
func (r *Runner) question(prompt string, found *discover.Result) string {
	msg := fmt.Sprintf("%s\n\n%s", prompt, r.fleet.DescribeDevices(found.Reachable))
	if len(found.Unreachable) > 0 {
		msg += fmt.Sprintf("\n\nNot reachable: %s", r.fleet.DescribeDevices(found.Unreachable))
	}
	return msg + "\n\nContinue?"
}

// describeFailure lists the failed devices, one line per cause when the
// causes are known.
func (r *Runner) describeFailure(pf *transfer.PartialFailureError) string {
	if len(pf.Causes) == 0 {
		return fmt.Sprintf("%s: %s", pf.Error(), r.fleet.DescribeDevices(pf.Devices))
	}
	var b strings.Builder
	b.WriteString(pf.Error())
	for _, c := range pf.Causes {
		fmt.Fprintf(&b, "\n%s: %s", r.fleet.DescribeDevices(c.Devices), c.Reason)
	}
	return b.String()
}

func (r *Runner) notifyFailure(err error) {
	if errors.Is(err, ErrAborted) || errors.Is(err, executor.ErrCancelled) || errors.Is(err, context.Canceled) {
		r.notify(CategoryError, "Cancelled", "The operation was cancelled by the user")
		return
	}
	r.notify(CategoryError, "Failed", err.Error())
}

func (r *Runner) notify(category, title, message string) {
	if err := r.notifier.Notify(Notification{Category: category, Title: title, Message: message}); err != nil {
		r.logger.Warn("notification failed", "title", title, "err", err)
	}
}

// clearDir removes everything inside dir but keeps dir itself.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
	}
	return nil
}

type alwaysProceed struct{}

func (alwaysProceed) Confirm(context.Context, string, string) (Decision, error) { return Proceed, nil }

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) error { return nil }

type noDisplay struct{}

func (noDisplay) Start(string, *progress.Signal) func() { return func() {} }
