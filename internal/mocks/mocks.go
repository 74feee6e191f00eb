package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"lineup-chat/internal/models"
	"lineup-chat/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) InsertMessage(ctx context.Context, threadID string, userID string, content string) (models.Message, error) {
	args := m.Called(ctx, threadID, userID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateMessageContent(ctx context.Context, messageID string, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	args := m.Called(ctx, threadID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) LastMessages(ctx context.Context, threadIDs []string) (map[string]models.Message, error) {
	args := m.Called(ctx, threadIDs)
	var last map[string]models.Message
	if val := args.Get(0); val != nil {
		last = val.(map[string]models.Message)
	}
	return last, args.Error(1)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) ResolveProfile(ctx context.Context, userID string) (models.Profile, error) {
	args := m.Called(ctx, userID)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) ResolveProfiles(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	args := m.Called(ctx, userIDs)
	var profiles []models.Profile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.Profile)
	}
	return profiles, args.Error(1)
}

type ConnectionRepositoryMock struct {
	mock.Mock
}

func (m *ConnectionRepositoryMock) Request(ctx context.Context, requesterID string, otherID string) (models.Connection, error) {
	args := m.Called(ctx, requesterID, otherID)
	var conn models.Connection
	if val := args.Get(0); val != nil {
		conn = val.(models.Connection)
	}
	return conn, args.Error(1)
}

func (m *ConnectionRepositoryMock) Get(ctx context.Context, connectionID string) (models.Connection, error) {
	args := m.Called(ctx, connectionID)
	var conn models.Connection
	if val := args.Get(0); val != nil {
		conn = val.(models.Connection)
	}
	return conn, args.Error(1)
}

func (m *ConnectionRepositoryMock) GetByPair(ctx context.Context, userA string, userB string) (models.Connection, error) {
	args := m.Called(ctx, userA, userB)
	var conn models.Connection
	if val := args.Get(0); val != nil {
		conn = val.(models.Connection)
	}
	return conn, args.Error(1)
}

func (m *ConnectionRepositoryMock) Accept(ctx context.Context, connectionID string) (models.Connection, error) {
	args := m.Called(ctx, connectionID)
	var conn models.Connection
	if val := args.Get(0); val != nil {
		conn = val.(models.Connection)
	}
	return conn, args.Error(1)
}

func (m *ConnectionRepositoryMock) Delete(ctx context.Context, connectionID string) error {
	args := m.Called(ctx, connectionID)
	return args.Error(0)
}

func (m *ConnectionRepositoryMock) ListForUser(ctx context.Context, userID string, status *models.ConnectionStatus) ([]models.Connection, error) {
	args := m.Called(ctx, userID, status)
	var conns []models.Connection
	if val := args.Get(0); val != nil {
		conns = val.([]models.Connection)
	}
	return conns, args.Error(1)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ProfileRepository = (*ProfileRepositoryMock)(nil)
var _ repositories.ConnectionRepository = (*ConnectionRepositoryMock)(nil)
