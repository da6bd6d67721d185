// Package grpcserver exposes the account service over gRPC.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/oxy-accounts/internal/errs"
	"github.com/and161185/oxy-accounts/internal/service"
)

// Server wires the account service into gRPC handlers.
type Server struct {
	accounts service.AccountService
	log      *zap.Logger
}

var _ AccountsServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(accounts service.AccountService, log *zap.Logger) *Server {
	return &Server{accounts: accounts, log: log}
}

// Register creates a new account.
func (s *Server) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	id, err := s.accounts.Register(ctx, req.Name, req.Password)
	if err != nil {
		return nil, s.toStatus(err, "register")
	}
	return &RegisterResponse{AccountID: id}, nil
}

// Login authenticates an account.
func (s *Server) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	a, err := s.accounts.Login(ctx, req.Name, req.Password)
	if err != nil {
		return nil, s.toStatus(err, "login")
	}
	return &LoginResponse{AccountID: a.ID.String(), Name: a.Name}, nil
}

// ChangePassword replaces the password of an account.
func (s *Server) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*ChangePasswordResponse, error) {
	if err := s.accounts.ChangePassword(ctx, req.Name, req.OldPassword, req.NewPassword); err != nil {
		return nil, s.toStatus(err, "change password")
	}
	return &ChangePasswordResponse{}, nil
}

// toStatus maps service errors onto gRPC codes. Details of credential
// failures are never sent to the client.
func (s *Server) toStatus(err error, op string) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "account already exists")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "bad credentials")
	case errors.Is(err, errs.ErrUnsupportedAlgorithm):
		return status.Error(codes.FailedPrecondition, "password reset required")
	case errors.Is(err, errs.ErrVersionConflict):
		return status.Error(codes.Aborted, "credential changed concurrently, retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		s.log.Error(op+" failed", zap.Error(err))
		return status.Error(codes.Internal, "internal")
	}
}
