package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"messaging-service/internal/models"
)

const (
	getUserMethod     = "/user.UserInternal/GetUser"
	bulkUsersMethod   = "/user.UserInternal/BulkUsers"
	getContactsMethod = "/user.UserInternal/GetContacts"
)

var ErrUserNotFound = errors.New("user not found")

// UserClient wraps the user-service connection.
type UserClient struct {
	conn grpc.ClientConnInterface
}

// NewUserClient constructs the wrapper.
func NewUserClient(conn grpc.ClientConnInterface) *UserClient {
	return &UserClient{conn: conn}
}

// GetBrief fetches one user's profile summary.
func (u *UserClient) GetBrief(ctx context.Context, userID int) (models.UserBrief, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"user_id": userID})
	if err != nil {
		return models.UserBrief{}, err
	}

	resp := &structpb.Struct{}
	if err := u.conn.Invoke(ctx, getUserMethod, req, resp); err != nil {
		return models.UserBrief{}, err
	}

	brief := briefFromStruct(resp)
	if brief.ID == 0 {
		return models.UserBrief{}, ErrUserNotFound
	}
	return brief, nil
}

// BulkBriefs fetches multiple profile summaries in one call.
func (u *UserClient) BulkBriefs(ctx context.Context, ids []int) ([]models.UserBrief, error) {
	if len(ids) == 0 {
		return []models.UserBrief{}, nil
	}

	idValues := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		idValues = append(idValues, id)
	}
	req, err := structpb.NewStruct(map[string]interface{}{"ids": idValues})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := u.conn.Invoke(ctx, bulkUsersMethod, req, resp); err != nil {
		return nil, err
	}

	var briefs []models.UserBrief
	for _, v := range resp.GetFields()["users"].GetListValue().GetValues() {
		briefs = append(briefs, briefFromStruct(v.GetStructValue()))
	}
	return briefs, nil
}

// Contacts returns the ids of the user's accepted contacts.
func (u *UserClient) Contacts(ctx context.Context, userID int) ([]int, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := u.conn.Invoke(ctx, getContactsMethod, req, resp); err != nil {
		return nil, err
	}

	var ids []int
	for _, v := range resp.GetFields()["contact_ids"].GetListValue().GetValues() {
		ids = append(ids, int(v.GetNumberValue()))
	}
	return ids, nil
}

func briefFromStruct(s *structpb.Struct) models.UserBrief {
	fields := s.GetFields()
	return models.UserBrief{
		ID:          int(fields["id"].GetNumberValue()),
		DisplayName: fields["display_name"].GetStringValue(),
		Avatar:      fields["avatar"].GetStringValue(),
	}
}
