package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/config"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
)

// Setup holds what main needs to shut observability down again.
type Setup struct {
	ShutdownTracing func(context.Context) error
	MetricsServer   *http.Server
}

// Init wires logging, metrics and tracing from cfg.
func Init(ctx context.Context, serviceName string, cfg *config.Config) (*Setup, error) {
	observability.InitLogger(cfg.LogLevel)
	observability.InitMetrics()

	shutdown, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	s := &Setup{ShutdownTracing: shutdown}
	if cfg.MetricsAddr != "" {
		s.MetricsServer = observability.StartMetricsServer(cfg.MetricsAddr)
	}
	return s, nil
}

func (s *Setup) Shutdown(ctx context.Context) {
	if s.MetricsServer != nil {
		if err := s.MetricsServer.Shutdown(ctx); err != nil {
			slog.Error("failed to stop metrics listener", "error", err)
		}
	}
	if s.ShutdownTracing != nil {
		if err := s.ShutdownTracing(ctx); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}
}
