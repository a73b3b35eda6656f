package main

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oliverjantar/tcpchat/model"
)

var errDuplicateUser = errors.New("username already exists")

// memStore is the in-memory ChatStore used by handler and API tests. The
// fail* fields inject a backend error into the corresponding call.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*User
	messages []MessageInfo

	failGetUser       error
	failInsertUser    error
	failInsertMessage error
	failGetMessages   error
	failRemoveUser    error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*User)}
}

func (m *memStore) setFailGetUser(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGetUser = err
}

func (m *memStore) setFailInsertUser(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failInsertUser = err
}

func (m *memStore) setFailInsertMessage(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failInsertMessage = err
}

func (m *memStore) InsertMessage(_ context.Context, msg *model.Message, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertMessage != nil {
		return m.failInsertMessage
	}

	username := ""
	for _, u := range m.users {
		if u.ID == userID {
			username = u.Username
		}
	}
	m.messages = append(m.messages, MessageInfo{
		ID:        uuid.New(),
		Username:  username,
		Text:      renderText(msg.Data),
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (m *memStore) GetMessages(_ context.Context, prefix string) ([]MessageInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetMessages != nil {
		return nil, m.failGetMessages
	}

	result := []MessageInfo{}
	for _, msg := range m.messages {
		if prefix == "" || strings.HasPrefix(msg.Username, prefix) {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if len(result) > historyLimit {
		result = result[:historyLimit]
	}
	return result, nil
}

func (m *memStore) InsertUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertUser != nil {
		return m.failInsertUser
	}
	if _, exists := m.users[user.Username]; exists {
		return errDuplicateUser
	}
	stored := *user
	stored.LastLogin = time.Now().UTC()
	m.users[user.Username] = &stored
	return nil
}

func (m *memStore) GetUser(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetUser != nil {
		return nil, m.failGetUser
	}
	user, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *memStore) GetUsers(_ context.Context) ([]UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []UserInfo{}
	for _, u := range m.users {
		result = append(result, UserInfo{ID: u.ID, Username: u.Username})
	}
	return result, nil
}

func (m *memStore) RemoveUser(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRemoveUser != nil {
		return 0, m.failRemoveUser
	}
	for name, u := range m.users {
		if u.ID == id {
			delete(m.users, name)
			return 1, nil
		}
	}
	return 0, nil
}
