package model

import (
	"context"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers (optional).
const (
	AuthTypeNone        = "none"
	AuthTypeStaticToken = "static_token"

	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int           `json:"version"` // fixed 0 for now
	Engine  EngineConfig  `json:"engine"`
	Batches []BatchConfig `json:"batches,omitempty"`
	Service Service       `json:"service"`
}

// EngineConfig is the documented option bag of the execution engine.
// Pointer fields are tri-state: absent means "engine default".
type EngineConfig struct {
	ParallelExecution     *bool          `json:"parallel_execution,omitempty"`
	MaxParallelTests      *int           `json:"max_parallel_tests,omitempty"`
	EnableTimeouts        *bool          `json:"enable_timeouts,omitempty"`
	EnableRetries         *bool          `json:"enable_retries,omitempty"`
	EnableResultInversion *bool          `json:"enable_result_inversion,omitempty"`
	InversionRule         *string        `json:"inversion_rule,omitempty"`
	FailFast              *bool          `json:"fail_fast,omitempty"`
	ExecutionTimeout      *string        `json:"execution_timeout,omitempty"` // Go duration, per job
	Timeout               *TimeoutConfig `json:"timeout,omitempty"`
	Retry                 *RetryConfig   `json:"retry,omitempty"`
	Pool                  *PoolConfig    `json:"pool,omitempty"`
}

type TimeoutConfig struct {
	Default  *string `json:"default,omitempty"`
	Min      *string `json:"min,omitempty"`
	Max      *string `json:"max,omitempty"`
	Strategy *string `json:"strategy,omitempty"` // "context" | "polling"
}

type RetryConfig struct {
	MaxRetries *int     `json:"max_retries,omitempty"`
	BaseDelay  *string  `json:"base_delay,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty"`
	MaxDelay   *string  `json:"max_delay,omitempty"`
	JitterMax  *float64 `json:"jitter_max,omitempty"`
}

type PoolConfig struct {
	Size           *int    `json:"size,omitempty"`
	MaxConnections *int    `json:"max_connections,omitempty"`
	MaxIdle        *string `json:"max_idle,omitempty"`
	MaxAge         *string `json:"max_age,omitempty"`
}

// BatchConfig declares one named batch of jobs.
type BatchConfig struct {
	Name   string      `json:"name"`
	Target string      `json:"target"`
	Jobs   []JobConfig `json:"jobs"`
}

type JobConfig struct {
	ID                string   `json:"id"`
	Probe             string   `json:"probe"`
	Target            *string  `json:"target,omitempty"` // defaults to the batch target
	DependsOn         []string `json:"depends_on,omitempty"`
	Priority          int      `json:"priority,omitempty"`
	Complexity        float64  `json:"complexity,omitempty"`
	EstimatedDuration *string  `json:"estimated_duration,omitempty"`
}

// Service controls the supervisor: manual one-shot runs or timer mode.
type Service struct {
	Mode       string         `json:"mode"` // "manual" | "timer"
	Verbose    bool           `json:"verbose,omitempty"`
	Log        *string        `json:"log,omitempty"` // "stderr"|"stdout"|"discard"|path
	Dir        *string        `json:"dir,omitempty"` // output directory for summaries
	Repository *Repository    `json:"repository,omitempty"`
	Schedule   *TimerSchedule `json:"schedule,omitempty"`
}

// Repository publication settings.
type Repository struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Auth    Auth   `json:"auth"`
}

// Auth is a tagged union: Type "none" or "static_token".
type Auth struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"` // required when Type == "static_token"
}

type TimerSchedule struct {
	Cron     string `json:"cron,omitempty"`
	Duration string `json:"duration,omitempty"` // ISO8601, e.g. PT15M
}

// Jobs converts the declared jobs of a batch into engine jobs.
// Invalid durations are a config error surfaced here, not at execution.
func (b BatchConfig) JobList() ([]Job, error) {
	jobs := make([]Job, 0, len(b.Jobs))
	for _, jc := range b.Jobs {
		j := Job{
			ID:         jc.ID,
			Probe:      jc.Probe,
			Target:     b.Target,
			DependsOn:  jc.DependsOn,
			Priority:   jc.Priority,
			Complexity: jc.Complexity,
		}
		if jc.Target != nil {
			j.Target = *jc.Target
		}
		if jc.EstimatedDuration != nil {
			d, err := time.ParseDuration(*jc.EstimatedDuration)
			if err != nil {
				return nil, err
			}
			j.EstimatedDuration = d
		}
		jobs = append(jobs, j)
	}
	return jobs, ValidateJobs(jobs)
}

// LoadConfig validates YAML from r against the CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	var out Config
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return out, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return out, err
	}

	if err := unified.Decode(&out); err != nil {
		return out, err
	}

	return out, nil
}

// CueErrDetails expands a CUE validation error into one line per cause.
func CueErrDetails(err error) []string {
	errs := cueerrors.Errors(err)
	details := make([]string, 0, len(errs))
	for _, e := range errs {
		details = append(details, cueerrors.Details(e, nil))
	}
	return details
}

// DefaultConfig is written on a first run when no config file exists.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		Engine:  EngineConfig{},
		Service: Service{
			Mode: ServiceModeManual,
		},
	}
}
