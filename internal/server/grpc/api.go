package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names of the oxy.accounts.v1.Accounts service.
const (
	ServiceName                  = "oxy.accounts.v1.Accounts"
	AccountsRegisterMethod       = "/" + ServiceName + "/Register"
	AccountsLoginMethod          = "/" + ServiceName + "/Login"
	AccountsChangePasswordMethod = "/" + ServiceName + "/ChangePassword"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// RegisterResponse carries the new account id.
type RegisterResponse struct {
	AccountID string `json:"account_id"`
}

// LoginRequest authenticates an account.
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginResponse identifies the authenticated account.
type LoginResponse struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// ChangePasswordRequest replaces an account's password.
type ChangePasswordRequest struct {
	Name        string `json:"name"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordResponse is empty on success.
type ChangePasswordResponse struct{}

// AccountsServer is the server API for the Accounts service.
type AccountsServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*ChangePasswordResponse, error)
}

// AccountsServiceDesc describes the Accounts service for grpc.Server.
var AccountsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(AccountsRegisterMethod, AccountsServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(AccountsLoginMethod, AccountsServer.Login)},
		{MethodName: "ChangePassword", Handler: unaryHandler(AccountsChangePasswordMethod, AccountsServer.ChangePassword)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oxy/accounts/v1/accounts.json",
}

// RegisterAccountsServer registers srv on s.
func RegisterAccountsServer(s grpc.ServiceRegistrar, srv AccountsServer) {
	s.RegisterService(&AccountsServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(AccountsServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AccountsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AccountsClient is the client API for the Accounts service.
type AccountsClient struct {
	cc grpc.ClientConnInterface
}

// NewAccountsClient returns a client speaking the JSON codec over cc.
func NewAccountsClient(cc grpc.ClientConnInterface) *AccountsClient {
	return &AccountsClient{cc: cc}
}

// Register creates an account.
func (c *AccountsClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.invoke(ctx, AccountsRegisterMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Login authenticates an account.
func (c *AccountsClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.invoke(ctx, AccountsLoginMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangePassword replaces the account password.
func (c *AccountsClient) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) (*ChangePasswordResponse, error) {
	out := new(ChangePasswordResponse)
	if err := c.invoke(ctx, AccountsChangePasswordMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountsClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
