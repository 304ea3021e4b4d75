package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/model"
)

const (
	minPasswordLength = 8
	// bcrypt only reads this many bytes.
	maxPasswordLength = 72
)

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return apperr.Validation("password must be at most %d bytes", maxPasswordLength)
	}
	return nil
}

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, password_hash, created_at, updated_at`

// Create registers a user with a bcrypt-hashed password.
func (s *UserStore) Create(email, name, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO users (email, name, password_hash) VALUES (?, ?, ?)`,
		email, name, string(hash),
	)
	if err != nil {
		if errors.Is(apperr.Classify(err), apperr.ErrConflict) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fmt.Errorf("insert user: %w", apperr.Classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ? AND `+notDeleted, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail matches case-insensitively.
func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ? AND `+notDeleted, strings.TrimSpace(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Authenticate returns the user when the password matches, nil otherwise.
func (s *UserStore) Authenticate(email, password string) (*model.User, error) {
	u, err := s.GetByEmail(email)
	if err != nil || u == nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	return u, nil
}

func (s *UserStore) UpdateName(id int64, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, updated_at = ? WHERE id = ? AND `+notDeleted,
		name, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", apperr.Classify(err))
	}
	return s.GetByID(id)
}

// ChangePassword replaces the password after checking the current one.
// A wrong current password is forbidden.
func (s *UserStore) ChangePassword(id int64, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}
	u, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.NotFound("user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return apperr.Forbidden("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND `+notDeleted,
		string(hash), now(), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", apperr.Classify(err))
	}
	return nil
}

// Delete soft-deletes a user and their memberships. It is a conflict while
// the user is the last active admin of any house.
func (s *UserStore) Delete(id int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT `+memberCols+` FROM house_members m WHERE m.user_id = ? AND m.deleted_at IS NULL`, id,
		)
		if err != nil {
			return fmt.Errorf("list memberships: %w", err)
		}
		var members []*model.Membership
		for rows.Next() {
			m, err := scanMembership(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan membership: %w", err)
			}
			members = append(members, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, m := range members {
			if err := guardLastAdmin(tx, m); err != nil {
				return err
			}
		}
		if err := softDelete(tx, "users", "user", id, ""); err != nil {
			return err
		}
		_, err = tx.Exec(
			`UPDATE house_members SET deleted_at = ?, updated_at = ? WHERE user_id = ? AND `+notDeleted,
			now(), now(), id,
		)
		if err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		return nil
	})
}
