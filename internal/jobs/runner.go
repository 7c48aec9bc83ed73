package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/observability"
)

type Job func(ctx context.Context) error

// jobTimeout — предел одного запуска; следующий тик при незавершённом запуске пропускается.
const jobTimeout = 2 * time.Minute

type Runner struct {
	ctx  context.Context
	cron *cron.Cron
	log  *zap.Logger
}

func New(ctx context.Context, loc *time.Location, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log.Sugar()}
	return &Runner{
		ctx:  ctx,
		cron: cron.New(cron.WithLocation(loc), cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		log:  log,
	}
}

// Schedule регистрирует задачу по cron-выражению из пяти полей.
func (r *Runner) Schedule(spec, name string, fn Job) error {
	if _, err := r.cron.AddFunc(spec, func() { r.runOnce(name, fn) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	r.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (r *Runner) Every(interval time.Duration, name string, fn Job) error {
	return r.Schedule("@every "+interval.String(), name, fn)
}

// Start запускает планировщик; при отмене ctx ждёт текущие задачи.
func (r *Runner) Start() {
	r.cron.Start()
	go func() {
		<-r.ctx.Done()
		<-r.cron.Stop().Done()
	}()
}

func (r *Runner) runOnce(name string, fn Job) {
	ctx, cancel := context.WithTimeout(ctxutil.WithOp(r.ctx, "job."+name), jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic in job %s: %v", name, rec)
			jobErrors.WithLabelValues(name).Inc()
			r.log.Error("job panic", zap.String("job", name), zap.Error(err))
			observability.CaptureErrCtx(ctx, err)
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if err := fn(ctx); err != nil {
		jobErrors.WithLabelValues(name).Inc()
		r.log.Error("job failed", zap.String("job", name), zap.Error(err))
		observability.CaptureErrCtx(ctx, err)
	}
}

// cronLogger — zap под интерфейс cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
