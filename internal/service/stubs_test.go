package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shapeit/internal/models"
	"shapeit/internal/repository"
	"shapeit/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.Post) error
	getByIDFn func(context.Context, uint) (*models.Post, error)
	listFn    func(context.Context, repository.PostFilter, int, int) ([]*models.Post, error)
	deleteFn  func(context.Context, uint) error
	countFn   func(context.Context) (int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.PostFilter, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, filter, limit, offset)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id, UserID: 1}, nil },
		listFn: func(_ context.Context, _ repository.PostFilter, _, _ int) ([]*models.Post, error) {
			return nil, nil
		},
		deleteFn: func(_ context.Context, _ uint) error { return nil },
		countFn:  func(_ context.Context) (int64, error) { return 0, nil },
	}
}

// reactionRepoStub is a stub for repository.ReactionRepository.
type reactionRepoStub struct {
	getByUserAndPostFn   func(context.Context, uint, uint) (*models.Reaction, error)
	createFn             func(context.Context, *models.Reaction) error
	updateShapeFn        func(context.Context, uint, models.Shape, models.Shape) error
	deleteFn             func(context.Context, uint, models.Shape) error
	countByPostsFn       func(context.Context, []uint) ([]models.ShapeCountRow, error)
	listByUserForPostsFn func(context.Context, uint, []uint) (map[uint]models.Shape, error)
}

func (s *reactionRepoStub) GetByUserAndPost(ctx context.Context, userID, postID uint) (*models.Reaction, error) {
	return s.getByUserAndPostFn(ctx, userID, postID)
}
func (s *reactionRepoStub) Create(ctx context.Context, r *models.Reaction) error {
	return s.createFn(ctx, r)
}
func (s *reactionRepoStub) UpdateShape(ctx context.Context, id uint, from, to models.Shape) error {
	return s.updateShapeFn(ctx, id, from, to)
}
func (s *reactionRepoStub) Delete(ctx context.Context, id uint, shape models.Shape) error {
	return s.deleteFn(ctx, id, shape)
}
func (s *reactionRepoStub) CountByPosts(ctx context.Context, ids []uint) ([]models.ShapeCountRow, error) {
	return s.countByPostsFn(ctx, ids)
}
func (s *reactionRepoStub) ListByUserForPosts(ctx context.Context, userID uint, ids []uint) (map[uint]models.Shape, error) {
	return s.listByUserForPostsFn(ctx, userID, ids)
}

func noopReactionRepo() *reactionRepoStub {
	return &reactionRepoStub{
		getByUserAndPostFn: func(_ context.Context, _, _ uint) (*models.Reaction, error) { return nil, nil },
		createFn:           func(_ context.Context, _ *models.Reaction) error { return nil },
		updateShapeFn:      func(_ context.Context, _ uint, _, _ models.Shape) error { return nil },
		deleteFn:           func(_ context.Context, _ uint, _ models.Shape) error { return nil },
		countByPostsFn: func(_ context.Context, _ []uint) ([]models.ShapeCountRow, error) {
			return nil, nil
		},
		listByUserForPostsFn: func(_ context.Context, _ uint, _ []uint) (map[uint]models.Shape, error) {
			return map[uint]models.Shape{}, nil
		},
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn                  func(context.Context, uint) (*models.User, error)
	getByEmailFn               func(context.Context, string) (*models.User, error)
	getByGitHubUsernameFn      func(context.Context, string) (*models.User, error)
	createFn                   func(context.Context, *models.User) error
	updateFn                   func(context.Context, *models.User) error
	setGitHubUsernameIfEmptyFn func(context.Context, uint, string) (bool, error)
	deleteFn                   func(context.Context, uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByGitHubUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByGitHubUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, u *models.User) error {
	return s.createFn(ctx, u)
}
func (s *userRepoStub) Update(ctx context.Context, u *models.User) error {
	return s.updateFn(ctx, u)
}
func (s *userRepoStub) SetGitHubUsernameIfEmpty(ctx context.Context, id uint, username string) (bool, error) {
	return s.setGitHubUsernameIfEmptyFn(ctx, id, username)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:    func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByGitHubUsernameFn: func(_ context.Context, username string) (*models.User, error) {
			return nil, models.NewNotFoundError("User", username)
		},
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn:                   func(_ context.Context, _ *models.User) error { return nil },
		setGitHubUsernameIfEmptyFn: func(_ context.Context, _ uint, _ string) (bool, error) { return true, nil },
		deleteFn:                   func(_ context.Context, _ uint) error { return nil },
	}
}

// blobStoreStub is a stub for storage.BlobStore.
type blobStoreStub struct {
	headFn func(context.Context, string) (*storage.BlobInfo, error)
	putFn  func(context.Context, string, []byte, string) (*storage.BlobInfo, error)
}

func (s *blobStoreStub) Head(ctx context.Context, name string) (*storage.BlobInfo, error) {
	return s.headFn(ctx, name)
}
func (s *blobStoreStub) Put(ctx context.Context, name string, content []byte, contentType string) (*storage.BlobInfo, error) {
	return s.putFn(ctx, name, content, contentType)
}

// providerStub is a stub for ProviderClient.
type providerStub struct {
	loginFn   func(context.Context, string) (string, error)
	profileFn func(context.Context, string) (*models.ProviderProfile, error)
}

func (s *providerStub) LoginByAccountID(ctx context.Context, accountID string) (string, error) {
	return s.loginFn(ctx, accountID)
}
func (s *providerStub) PublicProfile(ctx context.Context, login string) (*models.ProviderProfile, error) {
	return s.profileFn(ctx, login)
}

type publishedEvent struct {
	Type    string
	Payload any
}

// eventRecorder captures published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (r *eventRecorder) Publish(_ context.Context, eventType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{Type: eventType, Payload: payload})
	return r.err
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}
