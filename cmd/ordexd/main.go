package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"github.com/ordex-network/ordex-daemon/config"
	"github.com/ordex-network/ordex-daemon/internal/core/application"
	dbbadger "github.com/ordex-network/ordex-daemon/internal/infrastructure/storage/db/badger"
	"github.com/ordex-network/ordex-daemon/pkg/txbuilder"
)

func main() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := dbbadger.NewDbManager(
		filepath.Join(config.GetDatadir(), config.DbLocation), nil,
	)
	if err != nil {
		log.WithError(err).Panic("error while opening db")
	}
	defer repoManager.Close()

	explorerSvc, err := config.GetExplorer()
	if err != nil {
		log.WithError(err).Panic("error while connecting to explorer")
	}

	builder := txbuilder.NewBuilder(config.GetNetwork())
	defaultExpiry := time.Duration(config.GetInt(config.OfferExpiryTimeKey)) * time.Second

	offerSvc := application.NewOfferService(
		repoManager, explorerSvc, builder, defaultExpiry,
	)

	scheduler := gocron.NewScheduler(time.UTC)
	sweepInterval := config.GetInt(config.SweepIntervalKey)
	if _, err := scheduler.Every(sweepInterval).Seconds().Do(func() {
		offerSvc.SweepExpired(context.Background())
	}); err != nil {
		log.WithError(err).Panic("error while scheduling offers sweep")
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	log.Infof(
		"daemon started on network %s, sweeping expired offers every %ds",
		config.GetString(config.NetworkKey), sweepInterval,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Debug("exiting")
}
