package config_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/cli/config"
)

func TestFirestore(t *testing.T) {
	cfg := &config.Firestore{}
	gt.Equal(t, "", cfg.ProjectID())
	gt.False(t, cfg.IsConfigured())

	_, err := cfg.Configure(context.Background())
	gt.Error(t, err)
}
