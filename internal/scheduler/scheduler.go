package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"future-you/internal/usecase/delivery"
)

// Sweeper выполняет один проход доставки.
type Sweeper interface {
	Sweep(ctx context.Context) delivery.SweepResult
}

// Reminder выполняет ежедневную рассылку напоминаний.
type Reminder interface {
	Run(ctx context.Context, day time.Time) delivery.ReminderResult
}

// Config задаёт расписание фоновых задач.
type Config struct {
	SweepInterval time.Duration
	// ReminderHour — час суток в Location, когда отправляются напоминания. -1 отключает напоминания.
	ReminderHour int
	Location     *time.Location
}

// ErrAlreadyStarted возвращается при повторном запуске.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Scheduler владеет двумя независимыми периодическими задачами: проходом доставки и напоминаниями.
type Scheduler struct {
	sweeper  Sweeper
	reminder Reminder
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger

	mu      sync.Mutex
	started bool
	stop    context.CancelFunc
	abort   context.CancelFunc
	group   *errgroup.Group
}

// New создаёт планировщик. reminder может быть nil.
func New(sweeper Sweeper, reminder Reminder, cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		sweeper:  sweeper,
		reminder: reminder,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start запускает фоновые задачи и сразу возвращает управление. Первый проход доставки выполняется немедленно.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	loopCtx, stop := context.WithCancel(ctx)
	workCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = stop
	s.abort = abort
	s.group = &errgroup.Group{}

	s.group.Go(func() error {
		s.sweepLoop(loopCtx, workCtx)
		return nil
	})
	if s.reminder != nil && s.cfg.ReminderHour >= 0 {
		s.group.Go(func() error {
			s.reminderLoop(loopCtx, workCtx)
			return nil
		})
	}
	s.log.Info().Dur("sweep_interval", s.cfg.SweepInterval).Int("reminder_hour", s.cfg.ReminderHour).Str("tz", s.cfg.Location.String()).Msg("scheduler: запущен")
	return nil
}

// Shutdown прекращает запуск новых проходов и ждёт завершения текущего.
// Если ctx истекает раньше, текущий проход получает отмену.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	stop, abort, group := s.stop, s.abort, s.group
	s.mu.Unlock()

	stop()
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		abort()
		s.log.Info().Msg("scheduler: остановлен")
		return nil
	case <-ctx.Done():
		abort()
		<-done
		s.log.Warn().Msg("scheduler: проход прерван по таймауту остановки")
		return ctx.Err()
	}
}

func (s *Scheduler) sweepLoop(loopCtx, workCtx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		s.sweeper.Sweep(workCtx)
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
		}
		// тик мог сработать одновременно с остановкой
		if loopCtx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) reminderLoop(loopCtx, workCtx context.Context) {
	for {
		next := NextDailyRun(s.now(), s.cfg.ReminderHour, s.cfg.Location)
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-loopCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.reminder.Run(workCtx, next.In(s.cfg.Location))
	}
}

// NextDailyRun возвращает ближайший момент hour:00 в loc строго после now.
func NextDailyRun(now time.Time, hour int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}
