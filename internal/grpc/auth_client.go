package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const validateTokenMethod = "/auth.AuthService/ValidateToken"

// AuthClient wraps the auth-service connection. The auth contract is a
// single verify call, exchanged as struct messages on the raw conn.
type AuthClient struct {
	conn grpc.ClientConnInterface
}

// NewAuthClient constructs the wrapper.
func NewAuthClient(conn grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{conn: conn}
}

// Verify validates the bearer token and returns the authenticated user id.
func (a *AuthClient) Verify(ctx context.Context, token string) (int, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"token": token})
	if err != nil {
		return 0, err
	}

	resp := &structpb.Struct{}
	if err := a.conn.Invoke(ctx, validateTokenMethod, req, resp); err != nil {
		return 0, err
	}

	fields := resp.GetFields()
	if !fields["valid"].GetBoolValue() {
		return 0, errors.New("invalid token")
	}
	userID := int(fields["user_id"].GetNumberValue())
	if userID == 0 {
		return 0, errors.New("invalid token")
	}
	return userID, nil
}
