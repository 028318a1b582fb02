package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// UserRepo persists the 'users' table.
type UserRepo struct{ t *sqlTx }

const userColumns = `id, username, email, password_hash, phone_number, date_of_birth, avatar_url,
	is_verified, role, created_at, updated_at, last_login, version`

func scanUser(s scanner) (*model.User, error) {
	var (
		u              model.User
		dob, upd, last sql.NullTime
		avatar         sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.PhoneNumber, &dob, &avatar,
		&u.IsVerified, &u.Role, &u.CreatedAt, &upd, &last, &u.Version); err != nil {
		return nil, err
	}
	u.DateOfBirth = timePtr(dob)
	u.AvatarURL = stringPtr(avatar)
	u.UpdatedAt = timePtr(upd)
	u.LastLogin = timePtr(last)
	return &u, nil
}

// Create inserts u. Email and username are unique.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.t.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.PhoneNumber, nullTime(u.DateOfBirth), nullString(u.AvatarURL),
		u.IsVerified, u.Role, u.CreatedAt, nullTime(u.UpdatedAt), nullTime(u.LastLogin), u.Version)
	return duplicate(err, "User", u.Email)
}

func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, p model.UserPatch, expected int64) (*model.User, error) {
	var a assignments
	identifier := id.String()
	if p.Username != nil {
		a.set("username", *p.Username)
		identifier = *p.Username
	}
	if p.Email != nil {
		email := model.NormalizeEmail(*p.Email)
		a.set("email", email)
		identifier = email
	}
	if p.PhoneNumber != nil {
		a.set("phone_number", *p.PhoneNumber)
	}
	if p.DateOfBirth != nil {
		a.set("date_of_birth", *p.DateOfBirth)
	}
	if p.AvatarURL != nil {
		a.set("avatar_url", *p.AvatarURL)
	}
	if p.IsVerified != nil {
		a.set("is_verified", *p.IsVerified)
	}
	if p.LastLogin != nil {
		a.set("last_login", *p.LastLogin)
	}
	err := r.t.updateVersioned(ctx, "users", id, expected, a, func() (model.Record, error) {
		return r.FindByID(ctx, id)
	})
	if err != nil {
		return nil, duplicate(err, "User", identifier)
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.t.delete(ctx, "users", id)
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := scanUser(r.t.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "User", id)
	}
	return u, nil
}

// FindByEmail matches the normalized address.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	u, err := scanUser(r.t.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, notFound(err, "User", email)
	}
	return u, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.t.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return nil, notFound(err, "User", username)
	}
	return u, nil
}

func (r *UserRepo) FindAll(ctx context.Context, page Page) ([]model.User, error) {
	page = page.Normalize()
	rows, err := r.t.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanUser)
}
