package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/spf13/viper"

	"github.com/udovicic/security-scanner-sub004/internal/aggregate"
	"github.com/udovicic/security-scanner-sub004/internal/engine"
	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// report is what a single batch run publishes to the uploaders.
type report struct {
	Batch   string            `json:"batch"`
	Target  string            `json:"target"`
	Summary aggregate.Summary `json:"summary"`
	Batches model.BatchResult `json:"results"`
}

// Supervisor owns one engine and the batches declared in the config. It
// reacts to start signals, runs the named batches and publishes the
// aggregated reports.
type Supervisor struct {
	engine    *engine.Engine
	uploaders []model.Uploader
	oneshot   bool
	scheduler gocron.Scheduler
	runtime   Config
	start     chan string
	batchesMx sync.Mutex
	batches   map[string]model.BatchConfig
}

// NewSupervisor wires the supervisor from the validated config. Timer mode
// requires a parseable schedule; manual mode runs every batch once.
func NewSupervisor(ctx context.Context, cfg model.Config, eng *engine.Engine) (*Supervisor, error) {
	svcCfg := cfg.Service
	ups, err := uploaders(ctx, svcCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing uploaders: %w", err)
	}

	runtime, err := ParseConfig("service")
	if err != nil {
		return nil, fmt.Errorf("parsing service runtime config: %w", err)
	}

	var supervisor = &Supervisor{}
	var scheduler gocron.Scheduler
	if svcCfg.Mode == model.ServiceModeTimer {
		scheduler, err = newScheduler(ctx, svcCfg.Schedule, runtime.RunEach, func() { supervisor.Start("**") })
		if err != nil {
			return nil, fmt.Errorf("timer mode failed: %w", err)
		}
	}

	supervisor.engine = eng
	supervisor.uploaders = ups
	supervisor.oneshot = svcCfg.Mode == model.ServiceModeManual
	supervisor.scheduler = scheduler
	supervisor.runtime = runtime
	supervisor.start = make(chan string, 1)
	supervisor.batches = make(map[string]model.BatchConfig)

	for _, b := range cfg.Batches {
		supervisor.batches[b.Name] = b
	}

	return supervisor, nil
}

// SupervisorFromConfig loads runtime knobs from the config file into viper
// and wires a supervisor around the given engine.
func SupervisorFromConfig(ctx context.Context, cfg model.Config, configPath string, eng *engine.Engine) (*Supervisor, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			slog.DebugContext(ctx, "runtime config not loaded", "path", configPath, "error", err)
		}
	}
	return NewSupervisor(ctx, cfg, eng)
}

// WithUploaders replaces the uploaders of an initialized Supervisor.
// This method exists for a unit testing only.
func (s *Supervisor) WithUploaders(ctx context.Context, ups ...model.Uploader) *Supervisor {
	s.closeUploaders(ctx)
	s.uploaders = ups
	return s
}

// AddBatch registers a batch so it can be started by name or by "**".
func (s *Supervisor) AddBatch(ctx context.Context, cfg model.BatchConfig) {
	s.batchesMx.Lock()
	defer s.batchesMx.Unlock()
	if _, ok := s.batches[cfg.Name]; ok {
		slog.WarnContext(ctx, "batch already added: ignoring", "batch", cfg.Name)
		return
	}
	s.batches[cfg.Name] = cfg
}

// Start tells supervisor to run a batch - this is a signal, so it
// returns immediately and without any error.
// start "**" will trigger all registered batches
func (s *Supervisor) Start(name string) {
	s.start <- name
}

// Do runs the supervisor event loop.
//
// Modes:
//   - Oneshot (manual): a wildcard start "**" is triggered on entry; the
//     first execution or upload error is returned and the loop ends.
//   - Timer: the scheduler fires "**" periodically; errors are only
//     logged and the loop runs until ctx is cancelled.
//
// Returns nil on graceful cancellation, or the first error in oneshot mode.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor")

	if s.scheduler != nil {
		s.scheduler.Start()
		defer func() {
			err := s.scheduler.Shutdown()
			if err != nil {
				slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
			}
		}()
	}

	defer s.closeUploaders(ctx)

	if s.oneshot {
		s.Start("**")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case name := <-s.start:
			err := s.callStart(ctx, name)
			if s.oneshot {
				return err
			}
			if err != nil {
				slog.ErrorContext(ctx, "batch run returned", "error", err)
			}
		}
	}
}

func (s *Supervisor) closeUploaders(ctx context.Context) {
	for _, uploader := range s.uploaders {
		if closer, ok := uploader.(model.UploadCloser); ok {
			err := closer.Close()
			if err != nil {
				slog.ErrorContext(ctx, "closing uploader have failed", "error", err)
			}
		}
	}
}

func (s *Supervisor) callStart(ctx context.Context, name string) error {
	s.batchesMx.Lock()
	var run []model.BatchConfig
	if name == "**" {
		slog.DebugContext(ctx, "triggering all batches")
		for _, b := range s.batches {
			run = append(run, b)
		}
	} else if b, ok := s.batches[name]; ok {
		run = append(run, b)
	} else {
		slog.WarnContext(ctx, "cannot start batch: not known", "batch", name)
	}
	s.batchesMx.Unlock()

	var errs []error
	for _, b := range run {
		if err := s.runBatch(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("batch %s: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Supervisor) runBatch(ctx context.Context, cfg model.BatchConfig) error {
	jobs, err := cfg.JobList()
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "running batch", "batch", cfg.Name, "jobs", len(jobs))
	batch, err := s.engine.ExecuteBatch(ctx, cfg.Name, cfg.Target, jobs)
	if err != nil {
		return err
	}

	rep := report{
		Batch:   cfg.Name,
		Target:  cfg.Target,
		Summary: aggregate.AggregateBatch(batch),
		Batches: batch,
	}
	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	raw = append(raw, '\n')
	return s.upload(ctx, raw)
}

func (s *Supervisor) upload(ctx context.Context, raw []byte) error {
	if s.runtime.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runtime.UploadTimeout)
		defer cancel()
	}
	var errs []error
	for _, u := range s.uploaders {
		err := u.Upload(ctx, raw)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newScheduler(ctx context.Context, cfgp *model.TimerSchedule, fallback time.Duration, startFunc func()) (gocron.Scheduler, error) {
	var cfg model.TimerSchedule
	if cfgp != nil {
		cfg = *cfgp
	}
	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		err := ParseCron(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron, "job", job)
	case cfg.Duration != "":
		d, err := ParseISODuration(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.duration: %w", err)
		}
		slog.DebugContext(ctx, "successfully parsed", "duration", d.String(), "job", job)
		job = gocron.DurationJob(d)
	case fallback > 0:
		job = gocron.DurationJob(fallback)
	default:
		return nil, errors.New("both cron and duration are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(startFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
