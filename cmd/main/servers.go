package main

import (
	"fmt"
	"net"

	"volatility-observer/src/analysis"
	"volatility-observer/src/config"
	datasource "volatility-observer/src/data_source"
	"volatility-observer/src/grpc_control"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"

	"google.golang.org/grpc"
)

const defaultGrpcPort = 50051

// -----------------------------------------------------------------------------

// startServers starts the REST/WebSocket server and the gRPC control server.
// The returned gRPC server is nil when its listener could not be opened; the
// REST server keeps running in that case.
func startServers(
	srv interfaces.IDataExchanger,
	multiSource *datasource.MultiSourceManager,
	analyzer *analysis.AnalysisFacade,
	config *config.Config,
	configPath string,
	appLogger *logger.Logger,
) *grpc.Server {

	// 1. FastAPIServer
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	port := config.GrpcPort
	if port == 0 {
		port = defaultGrpcPort
	}
	addr := fmt.Sprintf("%s:%d", config.GrpcHost, port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		appLogger.Error("failed to listen for gRPC on %s: %v", addr, err)
		return nil
	}

	grpcLogger := logger.NewLogger(config, "ControlService")
	controlService := grpc_control.NewControlService(config, multiSource, analyzer, configPath, grpcLogger)
	grpcServer := grpc_control.NewGRPCServer(controlService)

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server stopped: %v", err)
		}
	}()

	return grpcServer
}
