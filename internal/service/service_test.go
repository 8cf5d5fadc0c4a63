package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"bus_ticket/internal/mail"
	"bus_ticket/internal/model"
	"bus_ticket/internal/repository"
	"bus_ticket/internal/utils"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func newTestJWT() *utils.JWTUtil {
	return utils.NewJWTUtil(testSecret, time.Hour, 5*time.Minute)
}

// seedUser stores a user with a hashed password and returns it
func seedUser(t *testing.T, repo repository.UserRepository, phone, password, role string) *model.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := &model.User{Phone: phone, PasswordHash: hash, Role: role, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

// recordingQueue captures queued mail; err makes every Enqueue fail
type recordingQueue struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, msg mail.Message) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) last() mail.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.msgs[len(q.msgs)-1]
}

// failingUserRepo fails every lookup
type failingUserRepo struct {
	repository.UserRepository
	err error
}

func (r failingUserRepo) FindByPhone(context.Context, string) (*model.User, error) { return nil, r.err }
func (r failingUserRepo) FindByID(context.Context, string) (*model.User, error)    { return nil, r.err }
