package loop

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmorand/pyforge/internal/config"
	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/diagnose"
	"github.com/jmorand/pyforge/internal/env"
	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/model"
	"github.com/jmorand/pyforge/internal/project"
	"github.com/jmorand/pyforge/internal/runner"
)

// EnvManager is the slice of the environment manager the loop needs.
type EnvManager interface {
	Ensure(ctx context.Context, p *project.Project) error
	Install(ctx context.Context, p *project.Project, names []string) (*env.InstallResult, error)
}

// ScriptRunner executes one process to completion.
type ScriptRunner interface {
	Run(ctx context.Context, spec runner.Spec, sink runner.Logf) (*runner.Outcome, error)
}

// Result is the terminal report of one build.
type Result struct {
	Project *project.Project

	// State is the terminal state reached.
	State State

	// Corrections is how many corrective re-runs were spent.
	Corrections int

	// Outcome is the last run outcome, nil if the build never ran.
	Outcome *runner.Outcome

	// Revision is the newest revision touched by this build. Accepted is
	// set when its run exited cleanly.
	Revision *project.Revision
}

// Controller runs builds. At most one build per project is in flight; a
// second Build call for the same project fails with BUILD_IN_PROGRESS.
type Controller struct {
	db       *sql.DB
	env      EnvManager
	run      ScriptRunner
	model    model.Client
	classify *diagnose.Classifier

	maxCorrections int
	runTimeout     time.Duration

	notify Notifier
	log    runner.Logf
	now    func() time.Time

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewController wires a controller from its collaborators. sink receives
// child process output and streamed model text; it may be nil.
func NewController(database *sql.DB, envMgr EnvManager, scriptRunner ScriptRunner, client model.Client, cfg *config.Config, sink runner.Logf) *Controller {
	if sink == nil {
		sink = func(string) {}
	}
	return &Controller{
		db:             database,
		env:            envMgr,
		run:            scriptRunner,
		model:          client,
		classify:       diagnose.New(),
		maxCorrections: cfg.MaxAttempts,
		runTimeout:     time.Duration(cfg.RunTimeoutSecs) * time.Second,
		log:            sink,
		now:            time.Now,
		active:         make(map[string]context.CancelFunc),
	}
}

// SetNotifier installs an observer for build state transitions.
func (c *Controller) SetNotifier(notify Notifier) {
	c.notify = notify
}

// Active returns the names of projects with a build in flight, sorted.
func (c *Controller) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.active))
	for name := range c.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cancel requests cancellation of the project's in-flight build. Returns
// false if no build is running.
func (c *Controller) Cancel(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.active[name]
	if ok {
		cancel()
	}
	return ok
}

// Build runs the full cycle for the named project. A non-empty prompt asks
// for fresh generation; an empty prompt re-runs and corrects the existing
// source. The returned Result is non-nil whenever the build got past
// registration, even on error.
func (c *Controller) Build(ctx context.Context, name, prompt string) (*Result, error) {
	p, err := db.GetProjectByName(c.db, name)
	if err != nil {
		return nil, err
	}

	runCtx, release, err := c.acquire(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	b := &build{notify: c.notify, project: p, state: StateIdle}

	if err := b.to(StateEnsuringEnv, ""); err != nil {
		return b.result(nil), err
	}
	if err := c.env.Ensure(runCtx, p); err != nil {
		if runCtx.Err() != nil {
			return c.cancelled(b)
		}
		_ = b.to(StateFailed, err.Error())
		return b.result(nil), err
	}

	goal, source, err := c.prepareSource(runCtx, b, prompt)
	if err != nil {
		if runCtx.Err() != nil {
			return c.cancelled(b)
		}
		_ = b.to(StateFailed, err.Error())
		return b.result(nil), err
	}

	for {
		if runCtx.Err() != nil {
			return c.cancelled(b)
		}
		if err := b.to(StateRunning, ""); err != nil {
			return b.result(nil), err
		}

		outcome, err := c.runOnce(runCtx, p)
		if err != nil {
			_ = b.to(StateClassifying, "")
			_ = b.to(StateExhausted, err.Error())
			return b.result(nil), errors.NewInternal(err)
		}
		b.lastOutcome = outcome
		if outcome.Cancelled {
			return c.cancelled(b)
		}
		if outcome.Success() {
			if err := b.to(StateSucceeded, ""); err != nil {
				return b.result(outcome), err
			}
			if b.revision != nil && !b.revision.Accepted {
				if err := db.MarkRevisionAccepted(c.db, p.ID, b.revision.Seq); err != nil {
					return b.result(outcome), err
				}
				b.revision.Accepted = true
			}
			return b.result(outcome), nil
		}

		if err := b.to(StateClassifying, ""); err != nil {
			return b.result(outcome), err
		}
		d := c.classify.Classify(outcome)

		if b.corrections >= c.maxCorrections {
			_ = b.to(StateExhausted, d.Detail)
			return b.result(outcome), errors.NewRetryExhausted(p.Name, b.corrections, d.Detail)
		}
		b.corrections++

		fixEvidence := failureText(d)
		if d.Category == diagnose.MissingDependency {
			installed, evidence, err := c.installMissing(runCtx, b, d)
			if err != nil {
				if runCtx.Err() != nil {
					return c.cancelled(b)
				}
				_ = b.to(StateFailed, err.Error())
				return b.result(outcome), err
			}
			if installed {
				// The package is in; re-run the same source without
				// spending a model call.
				continue
			}
			fixEvidence = evidence
		}

		if err := b.to(StateRequestingFix, d.Detail); err != nil {
			return b.result(outcome), err
		}
		source, err = c.generate(runCtx, model.CorrectionRequest(goal, source, fixEvidence, d.Line))
		if err != nil {
			if runCtx.Err() != nil {
				return c.cancelled(b)
			}
			_ = b.to(StateFailed, err.Error())
			return b.result(outcome), err
		}
		if err := c.writeRevision(b, source, project.OriginCorrection, d.Detail); err != nil {
			_ = b.to(StateFailed, err.Error())
			return b.result(outcome), err
		}
	}
}

// acquire registers an in-flight build for name and returns its context.
func (c *Controller) acquire(ctx context.Context, name string) (context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.active[name]; busy {
		return nil, nil, errors.NewBuildInProgress(name)
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.active[name] = cancel
	release := func() {
		c.mu.Lock()
		delete(c.active, name)
		c.mu.Unlock()
		cancel()
	}
	return runCtx, release, nil
}

// prepareSource produces the source the first run will execute, and the goal
// text corrections will be written against. With a prompt it generates fresh
// source; without one it restores the newest revision from history.
func (c *Controller) prepareSource(ctx context.Context, b *build, prompt string) (goal, source string, err error) {
	p := b.project

	if prompt == "" {
		latest, err := db.LatestRevision(c.db, p.ID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return "", "", errors.NewInvalidRequest(
					fmt.Sprintf("project %q has no source yet; provide a prompt", p.Name))
			}
			return "", "", err
		}
		b.revision = latest
		if err := writeEntryScript(p, latest.Source); err != nil {
			return "", "", err
		}
		return c.recoverGoal(p), latest.Source, nil
	}

	if err := b.to(StateGenerating, ""); err != nil {
		return "", "", err
	}
	source, err = c.generate(ctx, model.GenerationRequest(prompt))
	if err != nil {
		return "", "", err
	}
	if err := c.writeRevision(b, source, project.OriginPrompt, prompt); err != nil {
		return "", "", err
	}

	// Best effort: install declared imports up front so the first run
	// doesn't burn a correction on a predictable import failure.
	deps, depErr := model.IdentifyDependencies(ctx, c.model, source)
	if depErr != nil && ctx.Err() != nil {
		return "", "", depErr
	}
	if depErr == nil && len(deps) > 0 {
		if err := b.to(StateInstallingDep, fmt.Sprintf("installing %v", deps)); err != nil {
			return "", "", err
		}
		res, err := c.env.Install(ctx, p, deps)
		if err != nil {
			return "", "", err
		}
		if !res.OK {
			// Let the run produce a concrete diagnosis instead.
			c.log("upfront install failed; continuing to run")
		}
	}

	return prompt, source, nil
}

// installMissing resolves the diagnosed module to a package and installs it.
// Returns installed=true when the re-run can proceed directly; otherwise
// evidence carries the installer log for a correction request.
func (c *Controller) installMissing(ctx context.Context, b *build, d diagnose.Diagnosis) (installed bool, evidence string, err error) {
	pkg, err := model.ResolvePackage(ctx, c.model, d.SuggestedDependency)
	if err != nil {
		return false, "", err
	}

	if err := b.to(StateInstallingDep, "installing "+pkg); err != nil {
		return false, "", err
	}
	res, err := c.env.Install(ctx, b.project, []string{pkg})
	if err != nil {
		return false, "", err
	}
	if res.OK {
		return true, "", nil
	}

	c.log(fmt.Sprintf("install of %s failed, asking for a code fix instead", pkg))
	return false, fmt.Sprintf("%s\n\nInstalling %q was attempted and failed:\n%s", d.Detail, pkg, res.Log), nil
}

// runOnce executes the project's entry script with its own interpreter.
func (c *Controller) runOnce(ctx context.Context, p *project.Project) (*runner.Outcome, error) {
	return c.run.Run(ctx, runner.Spec{
		Command: []string{p.PythonPath(), p.EntryScript},
		Dir:     p.RootPath,
		Timeout: c.runTimeout,
	}, c.log)
}

// generate asks the model for code and extracts it from the reply.
func (c *Controller) generate(ctx context.Context, req model.Request) (string, error) {
	reply, err := c.model.GenerateStream(ctx, req, func(chunk string) { c.log(chunk) })
	if err != nil {
		return "", err
	}
	source := model.ExtractCode(reply)
	if source == "" {
		return "", errors.NewInternal(fmt.Errorf("model reply contained no code"))
	}
	return source, nil
}

// writeRevision persists source to disk and appends it to history.
func (c *Controller) writeRevision(b *build, source string, origin project.RevisionOrigin, note string) error {
	if err := writeEntryScript(b.project, source); err != nil {
		return err
	}
	rev := &project.Revision{
		ID:        ulid.Make().String(),
		ProjectID: b.project.ID,
		Source:    source,
		Origin:    origin,
		Note:      note,
		CreatedAt: c.now().Unix(),
	}
	if err := db.AppendRevision(c.db, rev); err != nil {
		return err
	}
	b.revision = rev
	return nil
}

// recoverGoal digs the originating prompt out of history for correction
// requests on a prompt-less rebuild.
func (c *Controller) recoverGoal(p *project.Project) string {
	revs, err := db.ListRevisions(c.db, p.ID)
	if err != nil {
		return ""
	}
	goal := ""
	for _, r := range revs {
		if r.Origin == project.OriginPrompt {
			goal = r.Note
		}
	}
	return goal
}

func (c *Controller) cancelled(b *build) (*Result, error) {
	_ = b.to(StateCancelled, "")
	return b.result(nil), errors.NewCancelled(b.project.Name)
}

// writeEntryScript materializes source as the project's entry script.
func writeEntryScript(p *project.Project, source string) error {
	if err := os.MkdirAll(p.RootPath, 0700); err != nil {
		return errors.NewInternal(err)
	}
	if err := os.WriteFile(p.EntryScriptPath(), []byte(source), 0600); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// failureText assembles the evidence handed to a correction request.
func failureText(d diagnose.Diagnosis) string {
	if d.RawExcerpt != "" && d.RawExcerpt != d.Detail {
		return d.Detail + "\n\n" + d.RawExcerpt
	}
	return d.Detail
}

// build is the per-invocation state machine instance.
type build struct {
	notify      Notifier
	project     *project.Project
	state       State
	corrections int
	revision    *project.Revision
	lastOutcome *runner.Outcome
}

// to performs a validated transition and notifies the observer.
func (b *build) to(next State, detail string) error {
	if !allowedTransition(b.state, next) {
		return errors.NewInternal(fmt.Errorf("invalid build transition %s -> %s", b.state, next))
	}
	b.state = next
	if b.notify != nil {
		b.notify(Event{
			Project:    b.project.Name,
			State:      next,
			Correction: b.corrections,
			Detail:     detail,
		})
	}
	return nil
}

func (b *build) result(outcome *runner.Outcome) *Result {
	if outcome != nil {
		b.lastOutcome = outcome
	}
	return &Result{
		Project:     b.project,
		State:       b.state,
		Corrections: b.corrections,
		Outcome:     b.lastOutcome,
		Revision:    b.revision,
	}
}
