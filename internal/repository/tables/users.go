package tables

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
)

// users columns: user_id, created_at, username, name, age, city, about, photo_main, photos, onboarding_completed,
// profile_edited_at

// UserRepo implements repository.UserRepository.
type UserRepo struct{ store repository.RowStore }

// NewUserRepo constructs a user repository.
func NewUserRepo(store repository.RowStore) *UserRepo { return &UserRepo{store: store} }

func decodeUser(cells []string) (model.User, bool) {
	id, ok := parseInt64(cell(cells, 0))
	if !ok {
		return model.User{}, false
	}
	age, _ := strconv.Atoi(cell(cells, 4))
	var photos []string
	if p := cell(cells, 8); p != "" {
		photos = strings.Split(p, ",")
	}
	return model.User{
		ID:                  id,
		CreatedAt:           parseTime(cell(cells, 1)),
		Username:            cell(cells, 2),
		Name:                cell(cells, 3),
		Age:                 age,
		City:                cell(cells, 5),
		About:               cell(cells, 6),
		PhotoMain:           cell(cells, 7),
		Photos:              photos,
		OnboardingCompleted: cell(cells, 9) == boolTrue,
		ProfileEditedAt:     parseTime(cell(cells, 10)),
	}, true
}

func encodeUser(u model.User) []string {
	age := ""
	if u.Age > 0 {
		age = strconv.Itoa(u.Age)
	}
	return []string{
		formatInt64(u.ID),
		formatTime(u.CreatedAt),
		u.Username,
		u.Name,
		age,
		u.City,
		u.About,
		u.PhotoMain,
		strings.Join(u.Photos, ","),
		formatBool(u.OnboardingCompleted),
		formatTime(u.ProfileEditedAt),
	}
}

// Get loads a user; errs.ErrNotFound if absent.
func (r *UserRepo) Get(ctx context.Context, userID int64) (model.User, error) {
	rows, err := r.store.QueryRows(ctx, repository.TableUsers)
	if err != nil {
		return model.User{}, fmt.Errorf("user get %d: %w", userID, err)
	}
	row, ok := findLast(rows, formatInt64(userID))
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	u, ok := decodeUser(row.Cells)
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}

// Save upserts the profile keyed by user id.
func (r *UserRepo) Save(ctx context.Context, u model.User) error {
	if err := upsert(ctx, r.store, repository.TableUsers, encodeUser(u)); err != nil {
		return fmt.Errorf("user save %d: %w", u.ID, err)
	}
	return nil
}

// ListCompleted returns the latest row of every user that finished onboarding.
func (r *UserRepo) ListCompleted(ctx context.Context) ([]model.User, error) {
	rows, err := r.store.QueryRows(ctx, repository.TableUsers)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	seen := make(map[int64]int)
	var out []model.User
	for _, row := range rows {
		u, ok := decodeUser(row.Cells)
		if !ok {
			continue
		}
		if i, dup := seen[u.ID]; dup {
			out[i] = u
			continue
		}
		seen[u.ID] = len(out)
		out = append(out, u)
	}
	completed := out[:0]
	for _, u := range out {
		if u.OnboardingCompleted {
			completed = append(completed, u)
		}
	}
	return completed, nil
}
