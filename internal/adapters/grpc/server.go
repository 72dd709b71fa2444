package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/application"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

const (
	serviceName          = "planner.license.v1.LicenseInternalService"
	getEntitlementMethod = "/" + serviceName + "/GetEntitlement"
)

// EntitlementReader is the slice of the application service other planner
// services may query.
type EntitlementReader interface {
	GetEntitlement(ctx context.Context, plannerID uuid.UUID) (application.EntitlementView, error)
}

type LicenseInternalService interface {
	GetEntitlement(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type LicenseInternalServer struct {
	entitlements EntitlementReader
}

func NewLicenseInternalServer(entitlements EntitlementReader) *LicenseInternalServer {
	return &LicenseInternalServer{entitlements: entitlements}
}

func Register(server grpc.ServiceRegistrar, svc LicenseInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*LicenseInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetEntitlement",
				Handler:    getEntitlementHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "planner/license/v1/license_internal.proto",
	}, svc)
}

// GetEntitlement answers whether a planner holds a usable license and its student ceiling.
// A planner without a license is a normal answer, not an error.
func (s *LicenseInternalServer) GetEntitlement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := req.GetFields()["planner_id"].GetStringValue()
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "missing planner_id")
	}
	plannerID, err := uuid.Parse(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "planner_id must be a UUID")
	}

	view, err := s.entitlements.GetEntitlement(ctx, plannerID)
	if errors.Is(err, domain.ErrNotFound) {
		return structpb.NewStruct(map[string]any{
			"planner_id":  plannerID.String(),
			"has_license": false,
		})
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get entitlement: %v", err)
	}

	fields := map[string]any{
		"planner_id":   plannerID.String(),
		"has_license":  true,
		"license_id":   view.LicenseID.String(),
		"status":       view.Status,
		"is_trial":     view.IsTrial,
		"max_students": view.MaxStudents,
		"max_devices":  view.MaxDevices,
		"usable":       usable(view),
	}
	if view.ExpiresAt != nil {
		fields["expires_at"] = view.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if view.DaysRemaining != nil {
		fields["days_remaining"] = *view.DaysRemaining
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func usable(view application.EntitlementView) bool {
	switch domain.Status(view.Status) {
	case domain.StatusActive, domain.StatusTrial:
		return view.DaysRemaining == nil || *view.DaysRemaining > 0
	default:
		return false
	}
}

func getEntitlementHandler(svc LicenseInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetEntitlement(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: getEntitlementMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetEntitlement(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
