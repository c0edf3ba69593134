package service

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime knobs for the supervisor that are not part of the
// validated scan configuration. They come from the viper instance bound by
// the command layer.
type Config struct {
	// UploadTimeout bounds a single report upload.
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
	// RunEach is a fallback interval used when timer mode has no schedule.
	RunEach time.Duration `mapstructure:"run_each"`
}

func ParseConfig(key string) (Config, error) {
	var svc Config
	err := viper.UnmarshalKey(key, &svc)
	return svc, err
}
