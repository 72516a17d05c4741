package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// LoginResult is what Client.Login returns. Token is sealed and can be sent
// back as-is to Validate, Logout or as session_token metadata.
type LoginResult struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

type Identity struct {
	UserID      string
	UserName    string
	DisplayName string
}

// Client is a typed wrapper over the session service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.SessionTokenHeaderName, token)
}

func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	in, err := structpb.NewStruct(map[string]any{"identifier": identifier, "password": password})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodLogin, in, out); err != nil {
		return nil, err
	}

	res := &LoginResult{Token: stringField(out, "token"), UserID: stringField(out, "user_id")}
	if raw := stringField(out, "expires_at"); raw != "" {
		if res.ExpiresAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (c *Client) Validate(ctx context.Context, token string) (*Identity, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodValidate, wrapperspb.String(token), out); err != nil {
		return nil, err
	}
	return &Identity{
		UserID:      stringField(out, "user_id"),
		UserName:    stringField(out, "username"),
		DisplayName: stringField(out, "display_name"),
	}, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.cc.Invoke(ctx, MethodLogout, wrapperspb.String(token), new(emptypb.Empty))
}

// RevokeAll ends every session of the user that owns token.
func (c *Client) RevokeAll(ctx context.Context, token string) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(withToken(ctx, token), MethodRevokeAll, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) Sweep(ctx context.Context, token string) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(withToken(ctx, token), MethodSweep, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
