package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/config"
	"github.com/biblioteca-utp/portal-service/internal/events"
	"github.com/biblioteca-utp/portal-service/internal/handler"
	"github.com/biblioteca-utp/portal-service/internal/repository"
	"github.com/biblioteca-utp/portal-service/internal/server"
	authsvc "github.com/biblioteca-utp/portal-service/internal/service/auth"
	"github.com/biblioteca-utp/portal-service/internal/service/catalog"
	"github.com/biblioteca-utp/portal-service/internal/service/lifecycle"
	"github.com/biblioteca-utp/portal-service/internal/service/reservation"
	"github.com/biblioteca-utp/portal-service/internal/service/session"
	"github.com/biblioteca-utp/portal-service/migrations"
	"github.com/biblioteca-utp/portal-service/pkg/logger"
	"github.com/biblioteca-utp/portal-service/pkg/postgres"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "portal")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %v", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo init %v", err)
	}

	producer, err := events.NewProducer(cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("events producer %v", err)
	}

	catalogSvc := catalog.NewService(repo, cfg.Storage.PublicBaseURL, log)
	reservationSvc := reservation.NewService(repo, producer, log)
	lifecycleSvc := lifecycle.NewService(repo, producer, log)
	authSvc := authsvc.NewService(repo, cfg.Auth, log)
	sessions := session.NewManager(repo)

	h := handler.New(catalogSvc, reservationSvc, lifecycleSvc, authSvc, sessions, cfg.Auth, log)

	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
	return nil
}
