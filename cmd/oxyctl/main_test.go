package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	grpcserver "github.com/and161185/oxy-accounts/internal/server/grpc"
)

var cheap = []string{"--memory", "1024", "--time", "1", "--parallelism", "1"}

// run executes oxyctl with args and stdin, returning stdout.
func run(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	if a == nil {
		a = &app{}
	}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestHashVerifyInspect(t *testing.T) {
	out, err := run(t, nil, "correcthorse\n", append([]string{"hash"}, cheap...)...)
	require.NoError(t, err)
	record := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(record, "$argon2id$v=19$m=1024,t=1,p=1$"), record)

	out, err = run(t, nil, "correcthorse\n", append([]string{"verify", record}, cheap...)...)
	require.NoError(t, err)
	var v recordView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.NotNil(t, v.Match)
	require.True(t, *v.Match)
	require.False(t, v.NeedsRehash)

	out, err = run(t, nil, "wrong-horse\n", "verify", record)
	var ee exitError
	require.True(t, errors.As(err, &ee), "got %v", err)
	require.Equal(t, 1, ee.code)
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.False(t, *v.Match)
	require.True(t, v.NeedsRehash, "cheap record is behind default params")

	out, err = run(t, nil, "", "inspect", record)
	require.NoError(t, err)
	v = recordView{}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Equal(t, "argon2id", string(v.Algorithm))
	require.False(t, v.Legacy)
	require.EqualValues(t, 1024, v.Memory)
	require.EqualValues(t, 16, v.SaltLen)
	require.Nil(t, v.Match)
}

func TestInspect_RejectsGarbage(t *testing.T) {
	_, err := run(t, nil, "", "inspect", "$2b$10$abcdefghijklmnopqrstuv")
	require.Error(t, err)
	_, err = run(t, nil, "", "inspect", "not-a-record")
	require.Error(t, err)
}

func TestHash_InvalidParams(t *testing.T) {
	_, err := run(t, nil, "pw\n", "hash", "--salt-len", "4")
	require.Error(t, err)
}

func TestReadSecret(t *testing.T) {
	a := &app{in: strings.NewReader("first\r\nsecond\n\n")}
	s, err := a.readSecret("a")
	require.NoError(t, err)
	require.Equal(t, "first", s)
	s, err = a.readSecret("b")
	require.NoError(t, err)
	require.Equal(t, "second", s)
	_, err = a.readSecret("c")
	require.ErrorContains(t, err, "empty")
	_, err = a.readSecret("d")
	require.ErrorContains(t, err, "no input")
}

func TestLoadTLS_Variants(t *testing.T) {
	c, err := loadTLS("", true)
	require.NoError(t, err)
	require.NotNil(t, c)

	c, err = loadTLS("", false)
	require.NoError(t, err)
	require.NotNil(t, c)

	_, err = loadTLS(filepath.Join(t.TempDir(), "missing.pem"), false)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = loadTLS(bad, false)
	require.ErrorContains(t, err, "bad CA cert")
}

type fakeServer struct {
	password string
}

func (f *fakeServer) Register(_ context.Context, req *grpcserver.RegisterRequest) (*grpcserver.RegisterResponse, error) {
	if req.Name == "taken" {
		return nil, status.Error(codes.AlreadyExists, "account exists")
	}
	f.password = req.Password
	return &grpcserver.RegisterResponse{AccountID: "acc-1"}, nil
}

func (f *fakeServer) Login(_ context.Context, req *grpcserver.LoginRequest) (*grpcserver.LoginResponse, error) {
	if req.Password != f.password {
		return nil, status.Error(codes.Unauthenticated, "bad credentials")
	}
	return &grpcserver.LoginResponse{AccountID: "acc-1", Name: req.Name}, nil
}

func (f *fakeServer) ChangePassword(_ context.Context, req *grpcserver.ChangePasswordRequest) (*grpcserver.ChangePasswordResponse, error) {
	if req.OldPassword != f.password {
		return nil, status.Error(codes.Unauthenticated, "bad credentials")
	}
	f.password = req.NewPassword
	return &grpcserver.ChangePasswordResponse{}, nil
}

func startFake(t *testing.T) *app {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	grpcserver.RegisterAccountsServer(gs, &fakeServer{})
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(func() { gs.Stop(); _ = lis.Close() })
	return &app{dialOpts: []grpc.DialOption{
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
	}}
}

func TestRemoteCommands(t *testing.T) {
	a := startFake(t)
	remote := func(stdin string, args ...string) (string, error) {
		// Fresh scanner per invocation.
		a.in, a.secrets = nil, nil
		return run(t, a, stdin, append([]string{"--plaintext", "--addr", "passthrough:///bufnet"}, args...)...)
	}

	out, err := remote("hunter2hunter2\n", "register", "slime")
	require.NoError(t, err)
	require.Contains(t, out, `"account_id": "acc-1"`)

	_, err = remote("x\n", "register", "taken")
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	out, err = remote("hunter2hunter2\n", "login", "slime")
	require.NoError(t, err)
	require.Contains(t, out, `"name": "slime"`)

	_, err = remote("nope\n", "login", "slime")
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	out, err = remote("hunter2hunter2\nnewpassword1\n", "passwd", "slime")
	require.NoError(t, err)
	require.Equal(t, "password changed\n", out)

	_, err = remote("newpassword1\n", "login", "slime")
	require.NoError(t, err)

	_, err = remote("only-one-line\n", "passwd", "slime")
	require.ErrorContains(t, err, "new password")
}
