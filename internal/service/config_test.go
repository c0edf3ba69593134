package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/service"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const alphaConfig = `
service:
  upload_timeout: "30s"
  run_each: "15m"
`

func TestParseConfig(t *testing.T) {
	// can't be parallel as touches the viper package
	viper.SetConfigType("yaml")
	err := viper.ReadConfig(strings.NewReader(alphaConfig))
	require.NoError(t, err)
	cfg, err := service.ParseConfig("service")
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, cfg.UploadTimeout)
	require.Equal(t, 15*time.Minute, cfg.RunEach)
}
