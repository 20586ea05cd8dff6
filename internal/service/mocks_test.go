package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"session-manager/internal/model"
)

// fakeStore is an in-memory SessionStore with error injection.
type fakeStore struct {
	mu            sync.Mutex
	sessions      []model.Session
	nextID        uint
	createErr     error
	listErr       error
	deactivateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (f *fakeStore) Create(ctx context.Context, session *model.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	session.ID = f.nextID
	f.nextID++
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.IsActive = true
	f.sessions = append(f.sessions, *session)
	return nil
}

func (f *fakeStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.Session
	for _, s := range f.sessions {
		if s.OwnerID == ownerID {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]model.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	result := append([]model.Session(nil), f.sessions...)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].OwnerID != result[j].OwnerID {
			return result[i].OwnerID < result[j].OwnerID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeStore) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []model.Session
	var deleted int64
	for _, s := range f.sessions {
		if s.OwnerID == ownerID {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	f.sessions = kept
	return deleted, nil
}

func (f *fakeStore) DeactivateAllForOwner(ctx context.Context, ownerID int64) error {
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].OwnerID == ownerID {
			f.sessions[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeStore) DeactivateByID(ctx context.Context, id uint) error {
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeStore) ListActiveForDisconnect(ctx context.Context, ownerID int64) ([]model.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.Session
	for _, s := range f.sessions {
		if s.OwnerID == ownerID && s.IsActive {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeStore) ListAllActive(ctx context.Context) ([]model.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.Session
	for _, s := range f.sessions {
		if s.IsActive {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeStore) byID(id uint) *model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			s := f.sessions[i]
			return &s
		}
	}
	return nil
}

// mockAuthClient is an AuthClient with overridable behavior.
type mockAuthClient struct {
	sendCodeFunc func(ctx context.Context, phone string) (string, error)
	signInFunc   func(ctx context.Context, phone, code, codeHash string) (*Identity, error)
	exportFunc   func(ctx context.Context) (string, error)

	sendCodeCalls int
	signInCalls   int
	closed        bool
}

func (m *mockAuthClient) SendCode(ctx context.Context, phone string) (string, error) {
	m.sendCodeCalls++
	if m.sendCodeFunc != nil {
		return m.sendCodeFunc(ctx, phone)
	}
	return "h1", nil
}

func (m *mockAuthClient) SignIn(ctx context.Context, phone, code, codeHash string) (*Identity, error) {
	m.signInCalls++
	if m.signInFunc != nil {
		return m.signInFunc(ctx, phone, code, codeHash)
	}
	return &Identity{UserID: 1000, Username: "tester", DisplayName: "Test er"}, nil
}

func (m *mockAuthClient) ExportSession(ctx context.Context) (string, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx)
	}
	return "exported-token", nil
}

func (m *mockAuthClient) Close() error {
	m.closed = true
	return nil
}

// mockSessionClient is a SessionClient with overridable behavior.
type mockSessionClient struct {
	pingFunc   func(ctx context.Context) error
	logOutFunc func(ctx context.Context) error
	closed     bool
}

func (m *mockSessionClient) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

func (m *mockSessionClient) LogOut(ctx context.Context) error {
	if m.logOutFunc != nil {
		return m.logOutFunc(ctx)
	}
	return nil
}

func (m *mockSessionClient) Close() error {
	m.closed = true
	return nil
}

// mockDialer hands out mock clients and records what it dialed.
type mockDialer struct {
	dialErr         error
	sendCodeFunc    func(ctx context.Context, phone string) (string, error)
	signInFunc      func(ctx context.Context, phone, code, codeHash string) (*Identity, error)
	dialSessionFunc func(ctx context.Context, token string) (SessionClient, error)

	dialed []*mockAuthClient
}

func (m *mockDialer) Dial(ctx context.Context) (AuthClient, error) {
	if m.dialErr != nil {
		return nil, m.dialErr
	}
	client := &mockAuthClient{
		sendCodeFunc: m.sendCodeFunc,
		signInFunc:   m.signInFunc,
	}
	m.dialed = append(m.dialed, client)
	return client, nil
}

func (m *mockDialer) DialSession(ctx context.Context, token string) (SessionClient, error) {
	if m.dialSessionFunc != nil {
		return m.dialSessionFunc(ctx, token)
	}
	return &mockSessionClient{}, nil
}
