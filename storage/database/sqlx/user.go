package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core/user"
)

type userRow struct {
	ID           int       `db:"id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	IsVerified   bool      `db:"is_verified"`
	OTP          string    `db:"otp"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Role:         r.Role,
		IsActive:     r.IsActive,
		IsVerified:   r.IsVerified,
		OTP:          r.OTP,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type tutorRow struct {
	ID          int         `db:"id"`
	UserID      int         `db:"user_id"`
	DisplayName null.String `db:"display_name"`
	FullName    null.String `db:"full_name"`
	Name        null.String `db:"name"`
}

func (r tutorRow) toTutor() user.Tutor {
	return user.Tutor{
		ID:          r.ID,
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		FullName:    r.FullName,
		Name:        r.Name,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make([]int, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}
	if len(excluded) == 0 {
		excluded = append(excluded, 0)
	}

	q, args, err := sqlx.In(
		`SELECT username, email FROM "user" WHERE (username = ? OR email = ?) AND id NOT IN (?) LIMIT 1`,
		username, email, excluded,
	)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var row struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err = repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...)
	switch {
	case err == sql.ErrNoRows:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking uniqueness")
	case row.Username == username:
		return user.ErrUsernameExists
	default:
		return user.ErrEmailExists
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `
	INSERT INTO "user" (name, username, email, role, is_active, is_verified, otp, password_hash, created_at, updated_at, last_login)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q,
		usr.Name, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.IsVerified,
		usr.OTP, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
		null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM "user" ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

func (repo *userRepository) getUser(ctx context.Context, q string, args ...interface{}) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, q, args...)
	switch {
	case err == sql.ErrNoRows:
		return user.User{}, user.ErrNotFound
	case err != nil:
		return user.User{}, errors.Wrap(err, "querying user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE email = $1`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE username = $1 OR email = $1`, uname)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `
	UPDATE "user"
	SET name = $2, username = $3, email = $4, role = $5, is_active = $6, is_verified = $7,
	    otp = $8, password_hash = $9, updated_at = $10, last_login = $11
	WHERE id = $1`

	if _, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.IsVerified,
		usr.OTP, usr.PasswordHash, usr.UpdatedAt,
		null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) GetTutor(ctx context.Context, id int) (user.Tutor, error) {
	var row tutorRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM tutor WHERE user_id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return user.Tutor{}, user.ErrNotFound
	case err != nil:
		return user.Tutor{}, errors.Wrap(err, "querying tutor")
	}
	return row.toTutor(), nil
}

func (repo *userRepository) CreateTutor(ctx context.Context, tut user.Tutor) (user.Tutor, error) {
	const q = `
	INSERT INTO tutor (user_id, display_name, full_name, name)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q, tut.UserID, tut.DisplayName, tut.FullName, tut.Name).Scan(&tut.ID)
	if err != nil {
		return user.Tutor{}, errors.Wrap(err, "inserting tutor")
	}
	return tut, nil
}
