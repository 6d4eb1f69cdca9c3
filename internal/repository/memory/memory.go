// Package memory holds in-process implementations of the repositories. They
// back the service and HTTP tests and follow the postgres semantics.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
)

type UserRepository struct {
	mu     sync.Mutex
	users  map[int64]models.User
	nextID int64
	now    func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]models.User), now: time.Now}
}

func clone(u models.User) *models.User {
	c := u
	copyStr := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	c.Name = copyStr(u.Name)
	c.Address = copyStr(u.Address)
	c.Comment = copyStr(u.Comment)
	c.RefreshTokenHashed = copyStr(u.RefreshTokenHashed)
	return &c
}

func (r *UserRepository) usernameTaken(username string, except int64) bool {
	for id, u := range r.users {
		if id != except && u.Username == username {
			return true
		}
	}
	return false
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.ErrNilUser
	}
	if user.Username == "" || user.PasswordHash == "" {
		return pkgerrors.ErrValidation
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usernameTaken(user.Username, 0) {
		return pkgerrors.ErrUsernameExists
	}
	r.nextID++
	now := r.now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *clone(*user)
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, pkgerrors.ErrValidation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return clone(u), nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func eqPtr(want *string, got *string) bool {
	return want == nil || (got != nil && *got == *want)
}

func sortKey(u models.User, field string) (string, bool) {
	deref := func(p *string) (string, bool) {
		if p == nil {
			return "", false
		}
		return *p, true
	}
	switch field {
	case "username":
		return u.Username, true
	case "name":
		return deref(u.Name)
	case "address":
		return deref(u.Address)
	case "comment":
		return deref(u.Comment)
	case "userType":
		return string(u.Role), true
	}
	return "", true
}

// List mirrors the SQL ordering: NULLs sort last ascending and first
// descending, ties broken by id.
func (r *UserRepository) List(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	if filter.SortBy != "" && !models.IsUserSortField(filter.SortBy) {
		return nil, pkgerrors.ErrValidation
	}

	r.mu.Lock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.Username != nil && u.Username != *filter.Username {
			continue
		}
		if !eqPtr(filter.Name, u.Name) || !eqPtr(filter.Address, u.Address) || !eqPtr(filter.Comment, u.Comment) {
			continue
		}
		if filter.UserType != nil && u.Role != *filter.UserType {
			continue
		}
		out = append(out, *clone(u))
	}
	r.mu.Unlock()

	desc := filter.SortDir == models.SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		if filter.SortBy == "" || filter.SortBy == "id" {
			if desc {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		}
		a, aok := sortKey(out[i], filter.SortBy)
		b, bok := sortKey(out[j], filter.SortBy)
		if a == b && aok == bok {
			return out[i].ID < out[j].ID
		}
		if aok != bok {
			// a NULL is greater than any value
			return aok != desc
		}
		if desc {
			return a > b
		}
		return a < b
	})

	limit, start, ok := filter.Window()
	if !ok {
		return nil, pkgerrors.ErrValidation
	}
	if start >= len(out) {
		return []models.User{}, nil
	}
	end := len(out)
	if len(out)-start > limit {
		end = start + limit
	}
	return out[start:end], nil
}

func (r *UserRepository) Update(_ context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	if update.Empty() {
		return clone(u), nil
	}
	if update.Username != nil {
		if r.usernameTaken(*update.Username, id) {
			return nil, pkgerrors.ErrUsernameExists
		}
		u.Username = *update.Username
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	if update.Name != nil {
		u.Name = update.Name
	}
	if update.Address != nil {
		u.Address = update.Address
	}
	if update.Comment != nil {
		u.Comment = update.Comment
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	u.UpdatedAt = r.now().UTC()
	r.users[id] = *clone(u)
	return clone(u), nil
}

func (r *UserRepository) Delete(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	delete(r.users, id)
	return clone(u), nil
}

func (r *UserRepository) Ping(context.Context) error {
	return nil
}

// RefreshTokenRepository keeps the refresh slot on the users held by a
// UserRepository, like the users.refresh_token_hashed column.
type RefreshTokenRepository struct {
	users *UserRepository
}

func NewRefreshTokenRepository(users *UserRepository) *RefreshTokenRepository {
	return &RefreshTokenRepository{users: users}
}

func (r *RefreshTokenRepository) write(userID int64, hash *string) error {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	u, ok := r.users.users[userID]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	u.RefreshTokenHashed = hash
	r.users.users[userID] = u
	return nil
}

func (r *RefreshTokenRepository) Set(_ context.Context, userID int64, tokenHash string) error {
	return r.write(userID, &tokenHash)
}

func (r *RefreshTokenRepository) Get(_ context.Context, userID int64) (string, bool, error) {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	u, ok := r.users.users[userID]
	if !ok || u.RefreshTokenHashed == nil || *u.RefreshTokenHashed == "" {
		return "", false, nil
	}
	return *u.RefreshTokenHashed, true, nil
}

func (r *RefreshTokenRepository) Swap(_ context.Context, userID int64, oldHash, newHash string) (bool, error) {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	u, ok := r.users.users[userID]
	if !ok || u.RefreshTokenHashed == nil || *u.RefreshTokenHashed != oldHash {
		return false, nil
	}
	u.RefreshTokenHashed = &newHash
	r.users.users[userID] = u
	return true, nil
}

func (r *RefreshTokenRepository) Unset(_ context.Context, userID int64) error {
	return r.write(userID, nil)
}
