package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlotExpander сдвигает окно генерации слотов
type SlotExpander interface {
	ExpandAll(ctx context.Context) (int, error)
}

// BookingSweeper фоновые операции над бронированиями
type BookingSweeper interface {
	CompletePast(ctx context.Context) (int, error)
	SendReminders(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	expander          SlotExpander
	sweeper           BookingSweeper
	expansionInterval time.Duration
	sweepInterval     time.Duration
	logger            *zap.Logger
	stopChan          chan struct{}
	stopOnce          sync.Once
	wg                sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(
	expander SlotExpander,
	sweeper BookingSweeper,
	expansionInterval, sweepInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		expander:          expander,
		sweeper:           sweeper,
		expansionInterval: expansionInterval,
		sweepInterval:     sweepInterval,
		logger:            logger,
		stopChan:          make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("expansion_interval", s.expansionInterval),
		zap.Duration("sweep_interval", s.sweepInterval))

	s.wg.Add(2)
	go s.run(ctx, "slot expansion", s.expansionInterval, s.expandSlots)
	go s.run(ctx, "booking sweep", s.sweepInterval, s.sweepBookings)
}

// Stop останавливает фоновые задачи и ждёт завершения текущих запусков
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// run вызывает task сразу при старте и затем по тикеру
func (s *Scheduler) run(ctx context.Context, name string, interval time.Duration, task func(context.Context)) {
	defer s.wg.Done()

	task(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			task(ctx)
		case <-s.stopChan:
			s.logger.Info("Background task stopped", zap.String("task", name))
			return
		case <-ctx.Done():
			s.logger.Info("Background task cancelled", zap.String("task", name))
			return
		}
	}
}

func (s *Scheduler) expandSlots(ctx context.Context) {
	generated, err := s.expander.ExpandAll(ctx)
	if err != nil {
		s.logger.Error("Failed to expand slots", zap.Error(err))
		return
	}

	s.logger.Info("Automatic slot expansion completed", zap.Int("generated", generated))
}

// sweepBookings закрывает прошедшие занятия и рассылает напоминания
func (s *Scheduler) sweepBookings(ctx context.Context) {
	if _, err := s.sweeper.CompletePast(ctx); err != nil {
		s.logger.Error("Failed to complete past bookings", zap.Error(err))
	}
	if _, err := s.sweeper.SendReminders(ctx); err != nil {
		s.logger.Error("Failed to send reminders", zap.Error(err))
	}
}
