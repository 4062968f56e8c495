package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/cli/config"
)

func TestSentry(t *testing.T) {
	gt.NoError(t, config.NewSentryForTest("", 5).Configure())
	gt.Error(t, config.NewSentryForTest("https://key@example.invalid/1", 1.5).Configure())
}
