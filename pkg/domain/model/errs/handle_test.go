package errs_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

func TestHandle(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.With(context.Background(), logging.New(&buf, slog.LevelInfo, logging.FormatJSON, false))

	errs.Handle(ctx, goerr.New("outbox gave up", goerr.V("attempt", 3), goerr.T(errs.TagDatabase)))
	gt.S(t, buf.String()).Contains("outbox gave up").Contains("sentry.id")

	buf.Reset()
	errs.Handle(ctx, nil)
	gt.Equal(t, buf.Len(), 0)
}

func TestTags(t *testing.T) {
	err := goerr.Wrap(goerr.New("missing", goerr.T(errs.TagNotFound)), "load failed")
	gt.True(t, goerr.HasTag(err, errs.TagNotFound))
	gt.False(t, goerr.HasTag(err, errs.TagValidation))
}
