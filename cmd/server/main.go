package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/api"
	"github.com/Freeeeeet/tutor_scheduler/internal/app"
	"github.com/Freeeeeet/tutor_scheduler/internal/config"
	"github.com/Freeeeeet/tutor_scheduler/internal/notify"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
)

const (
	sweepInterval   = 5 * time.Minute
	shutdownTimeout = 30 * time.Second
)

// storage набор репозиториев одного бэкенда
type storage struct {
	tx          service.Transactor
	users       service.UserRepository
	shifts      service.ShiftRepository
	slots       service.SlotRepository
	bookings    service.BookingRepository
	tickets     service.TicketRepository
	balances    service.BalanceRepository
	utilization service.UtilizationRepository
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting tutor scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.String("timezone", cfg.Location.String()))

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	policy, err := service.ParseDebitPolicy(cfg.LedgerDebitPolicy)
	if err != nil {
		return err
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}

	clock := service.Clock(time.Now)
	notifier := service.NewNotifier(sender, store.users, cfg.NotifyTimeout, cfg.Location, logger)
	schedule := service.NewScheduleService(store.tx, store.shifts, store.slots, cfg.GenerationHorizon, cfg.Location, clock, logger)
	ledger := service.NewLedgerService(store.tickets, store.balances, store.users, policy, clock, logger)
	bookings := service.NewBookingService(store.tx, store.slots, store.bookings, store.users, ledger,
		notifier, cfg.ReminderLead, clock, logger)

	handler := api.NewHandler(api.Services{
		Schedule:    schedule,
		Bookings:    bookings,
		Ledger:      ledger,
		Utilization: service.NewUtilizationService(store.utilization),
		Profiles:    service.NewProfileService(store.users, store.slots, store.tickets, cfg.PublicSlotsLimit, cfg.GenerationHorizon, clock, logger),
	}, cfg.PublicSlotsLimit, clock, logger)

	scheduler := app.NewScheduler(schedule, bookings, cfg.ExpansionInterval, sweepInterval, logger)
	scheduler.Start(ctx)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(handler, cfg.CORSOrigins, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	notifier.Wait()

	logger.Info("Server stopped")
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		db := memory.NewDB()
		return &storage{
			tx:          db,
			users:       memory.NewUserRepository(db),
			shifts:      memory.NewShiftRepository(db),
			slots:       memory.NewSlotRepository(db),
			bookings:    memory.NewBookingRepository(db),
			tickets:     memory.NewTicketRepository(db),
			balances:    memory.NewBalanceRepository(db),
			utilization: memory.NewUtilizationRepository(db),
			close:       func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.MigrationsAuto {
		if err := migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &storage{
		tx:          base.NewTransactor(pool),
		users:       repository.NewUserRepository(pool),
		shifts:      repository.NewShiftRepository(pool),
		slots:       repository.NewSlotRepository(pool),
		bookings:    repository.NewBookingRepository(pool),
		tickets:     repository.NewTicketRepository(pool),
		balances:    repository.NewBalanceRepository(pool),
		utilization: repository.NewUtilizationRepository(pool),
		close:       pool.Close,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

// newSender собирает каналы уведомлений из конфига; без каналов пишет в лог
func newSender(cfg *config.Config, logger *zap.Logger) (notify.Sender, error) {
	var senders []notify.Sender

	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			return nil, fmt.Errorf("init telegram sender: %w", err)
		}
		senders = append(senders, tg)
	}
	if cfg.SendGridAPIKey != "" {
		senders = append(senders, notify.NewEmailSender(cfg.SendGridAPIKey, "Tutor Scheduler", cfg.NotifyFromEmail))
	}

	if len(senders) == 0 {
		logger.Info("No notification channels configured, notifications go to log")
		return notify.NewLogSender(logger), nil
	}

	logger.Info("Notification channels configured", zap.Int("channels", len(senders)))
	return notify.NewMulti(senders...), nil
}
