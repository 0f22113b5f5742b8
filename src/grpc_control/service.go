package grpc_control

import (
	"context"
	"fmt"
	"strings"

	"volatility-observer/src/analysis"
	"volatility-observer/src/analysis/core"
	"volatility-observer/src/config"
	datasource "volatility-observer/src/data_source"
	"volatility-observer/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements ControlServer
type ControlService struct {
	Config     *config.Config
	DataSource *datasource.MultiSourceManager
	Analysis   *analysis.AnalysisFacade
	ConfigPath string
	Logger     *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	cfg *config.Config,
	ds *datasource.MultiSourceManager,
	facade *analysis.AnalysisFacade,
	cfgPath string,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Config:     cfg,
		DataSource: ds,
		Analysis:   facade,
		ConfigPath: cfgPath,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

// NewGRPCServer builds a server exposing the control plane and the standard
// health service.
func NewGRPCServer(svc *ControlService, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	RegisterControlServer(s, svc)
	return s
}

// -----------------------------------------------------------------------------

// Normalize expects {data: [number], value: number, k_factor?, percentile?}
// and answers {valid, value} (+ stats when debug is true).
func (s *ControlService) Normalize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	list, ok := fields["data"].GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "data must be a list of numbers")
	}
	data := make([]float64, 0, len(list.ListValue.GetValues()))
	for i, v := range list.ListValue.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "data[%d] is not a number", i)
		}
		data = append(data, n.NumberValue)
	}

	value, ok := numberField(fields, "value")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "value is required")
	}

	opts := s.Analysis.Options
	if k, ok := numberField(fields, "k_factor"); ok {
		opts.KFactor = k
	}
	if p, ok := numberField(fields, "percentile"); ok {
		opts.Percentile = p
	}

	out := map[string]interface{}{"valid": false, "value": nil}
	stats, ok := core.AnalyzeRange(data, opts)
	if ok {
		out["valid"] = true
		out["value"] = stats.Ratio(value)
		if fields["debug"].GetBoolValue() {
			out["stats"] = map[string]interface{}{
				"count":             float64(stats.Count),
				"q1":                stats.Q1,
				"q3":                stats.Q3,
				"iqr":               stats.IQR,
				"outlier_ratio":     stats.OutlierRatio,
				"adjusted_k_factor": stats.AdjustedKFactor,
				"min":               stats.Min,
				"max":               stats.Max,
			}
		}
	}

	return toStruct(out)
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSources(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var list []interface{}
	for _, src := range s.DataSource.GetAllSources() {
		list = append(list, map[string]interface{}{
			"name":       src.Name(),
			"type":       s.sourceType(src.Name()),
			"real_time":  src.IsRealTime(),
			"currencies": stringsToValues(src.Symbols()),
		})
	}
	if list == nil {
		list = []interface{}{}
	}

	return toStruct(map[string]interface{}{"sources": list})
}

// -----------------------------------------------------------------------------

// UpdateCurrencies expects {source_name: string, currencies: [string]}.
func (s *ControlService) UpdateCurrencies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	sName := fields["source_name"].GetStringValue()
	if sName == "" {
		return nil, status.Error(codes.InvalidArgument, "source_name is required")
	}

	var currencies []string
	for _, v := range fields["currencies"].GetListValue().GetValues() {
		if cur := strings.ToUpper(strings.TrimSpace(v.GetStringValue())); cur != "" {
			currencies = append(currencies, cur)
		}
	}
	if len(currencies) == 0 {
		return nil, status.Error(codes.InvalidArgument, "currencies list cannot be empty")
	}

	source, err := s.DataSource.GetSource(sName)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "source %s not found", sName)
	}

	if err := source.UpdateSymbols(currencies); err != nil {
		s.Logger.Error("gRPC: Failed to update running source: %v", err)
		return toStruct(map[string]interface{}{
			"success": false,
			"message": fmt.Sprintf("Failed to update running source: %v", err),
		})
	}

	// Update Config Persistence
	if s.Config.SetSourceCurrencies(sName, currencies) && s.ConfigPath != "" {
		if err := s.Config.Save(s.ConfigPath); err != nil {
			s.Logger.Warning("gRPC: Failed to persist config: %v", err)
		}
	}

	s.Logger.Info("gRPC: UpdateCurrencies success for %s. Count: %d", sName, len(currencies))
	return toStruct(map[string]interface{}{
		"success":        true,
		"message":        fmt.Sprintf("Successfully updated %s with %d currencies", sName, len(currencies)),
		"currency_count": float64(len(currencies)),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) sourceType(name string) string {
	if t := s.Config.SourceType(name); t != "" {
		return t
	}
	return "unknown"
}

func numberField(fields map[string]*structpb.Value, key string) (float64, bool) {
	n, ok := fields[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

func stringsToValues(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}
