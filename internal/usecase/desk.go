package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// Job names used by the scheduler, the CLI and metrics.
const (
	JobGenerate = "generate"
	JobAnalyze  = "analyze"
	JobPublish  = "publish"
)

// ErrJobRunning is returned when the same desk job is already in flight.
var ErrJobRunning = errors.New("job already running")

// Desk bundles the jobs and the review store of one editorial desk. At most
// one run per job is in flight, whoever triggers it.
type Desk struct {
	Name     string
	Store    ports.PostStore
	Labels   domain.StatusLabels
	Generate *GenerationJob
	Analyze  *AnalysisJob
	Publish  *PublishingJob
	Recorder ports.StageRecorder

	mu      sync.Mutex
	running map[string]bool
}

// RunJob executes a desk job by name.
func (d *Desk) RunJob(ctx context.Context, name string) error {
	var err error
	switch name {
	case JobGenerate:
		_, err = d.RunGenerate(ctx)
	case JobAnalyze:
		_, err = d.RunAnalyze(ctx)
	case JobPublish:
		_, err = d.RunPublish(ctx)
	default:
		err = fmt.Errorf("unknown job %q", name)
	}
	return err
}

// RunGenerate runs one generation pass. The job records its own metrics.
func (d *Desk) RunGenerate(ctx context.Context) (domain.RunReport, error) {
	if d.Generate == nil {
		return domain.RunReport{}, fmt.Errorf("desk %s has no generation job", d.Name)
	}
	release, err := d.acquire(JobGenerate)
	if err != nil {
		return domain.RunReport{}, err
	}
	defer release()
	return d.Generate.Run(ctx)
}

// GenerateInBackground claims the generation slot and runs the job on its own
// goroutine. done, if set, receives the result before the slot is freed.
func (d *Desk) GenerateInBackground(ctx context.Context, done func(domain.RunReport, error)) error {
	if d.Generate == nil {
		return fmt.Errorf("desk %s has no generation job", d.Name)
	}
	release, err := d.acquire(JobGenerate)
	if err != nil {
		return err
	}
	go func() {
		defer release()
		report, err := d.Generate.Run(ctx)
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

// RunAnalyze reviews pending posts and records the outcome.
func (d *Desk) RunAnalyze(ctx context.Context) (domain.StageReport, error) {
	if d.Analyze == nil {
		return domain.StageReport{}, fmt.Errorf("desk %s has no analysis job", d.Name)
	}
	release, err := d.acquire(JobAnalyze)
	if err != nil {
		return domain.StageReport{}, err
	}
	defer release()

	started := time.Now()
	report, err := d.Analyze.Run(ctx)
	d.record(report, started, JobAnalyze, err)
	return report, err
}

// RunPublish publishes the best approved post and records the outcome.
func (d *Desk) RunPublish(ctx context.Context) (*PublishOutcome, error) {
	if d.Publish == nil {
		return nil, fmt.Errorf("desk %s has no publishing job", d.Name)
	}
	release, err := d.acquire(JobPublish)
	if err != nil {
		return nil, err
	}
	defer release()

	started := time.Now()
	outcome, err := d.Publish.Run(ctx)
	report := domain.StageReport{Stage: domain.StagePublish}
	if outcome != nil || err != nil {
		report.Attempted = 1
	}
	if outcome != nil {
		report.Succeeded = 1
	}
	if err != nil {
		report.Failed = 1
	}
	d.record(report, started, JobPublish, err)
	return outcome, err
}

// Posts reads the desk's rows, optionally filtered by status.
func (d *Desk) Posts(ctx context.Context, status string, limit int) ([]domain.PostRecord, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("desk %s has no review store", d.Name)
	}
	return d.Store.Read(ctx, domain.PostFilter{Status: status, Limit: limit})
}

// acquire marks job as running and returns the func that frees it.
func (d *Desk) acquire(job string) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running[job] {
		return nil, fmt.Errorf("%w: %s/%s", ErrJobRunning, d.Name, job)
	}
	if d.running == nil {
		d.running = map[string]bool{}
	}
	d.running[job] = true
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.running, job)
	}, nil
}

func (d *Desk) record(report domain.StageReport, started time.Time, job string, err error) {
	if d.Recorder == nil {
		return
	}
	d.Recorder.RecordStage(d.Name, report)
	d.Recorder.RecordRun(d.Name, job, started, err)
}
