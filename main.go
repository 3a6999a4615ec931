package main

import (
	"log"
	"net"
	"os"
	"path"

	"go.uber.org/zap"

	"github.com/edgemesh/edge-sync/config"
	"github.com/edgemesh/edge-sync/dao"
	"github.com/edgemesh/edge-sync/session"
	"github.com/edgemesh/edge-sync/store"
	"github.com/edgemesh/edge-sync/store/postgres"
	"github.com/edgemesh/edge-sync/store/sqlite"
	"github.com/edgemesh/edge-sync/syncer"
)

func main() {
	config, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	eventStore, err := createStore(config)
	if err != nil {
		logger.Fatal("failed to create edge event store", zap.Error(err))
	}

	registry := dao.NewInMemory()
	syncService := syncer.NewService(eventStore, registry.Providers(), nil, logger)
	syncService.SetPageSize(config.SyncPageSize)
	defer syncService.Stop()

	manager := session.NewManager(eventStore, syncService, logger)
	manager.SetTunables(config.SyncPageSize, config.MaxReadRecordsCount)
	syncService.SetNotifier(manager)

	quitChan := make(chan struct{})
	defer close(quitChan)
	manager.Start(quitChan)

	grpcListener, err := net.Listen("tcp", config.GrpcListenAddress)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("address", config.GrpcListenAddress), zap.Error(err))
	}
	httpListener, err := net.Listen("tcp", config.HTTPListenAddress)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("address", config.HTTPListenAddress), zap.Error(err))
	}

	grpcServer := CreateServer(config, nil)
	go func() {
		logger.Info("http server listening", zap.String("address", config.HTTPListenAddress))
		if err := serveHTTP(config, grpcServer, httpListener); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("grpc server listening", zap.String("address", config.GrpcListenAddress))
	if err := grpcServer.Serve(grpcListener); err != nil {
		logger.Fatal("grpc server failed", zap.Error(err))
	}
}

func createStore(config *config.Config) (store.EdgeEventStore, error) {
	if config.PgDatabaseUrl != "" {
		return postgres.NewPgEdgeEventStore(config.PgDatabaseUrl, config.SeqIDCeiling)
	}
	if err := os.MkdirAll(config.SQLiteDirPath, 0700); err != nil {
		return nil, err
	}
	return sqlite.NewSQLiteEdgeEventStore(path.Join(config.SQLiteDirPath, "edge_events.db"), config.SeqIDCeiling)
}
