package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
	"github.com/phamhoa2416/ticket-booking/internal/utils"
)

type UserService struct {
	base
	bcryptCost int
	verify     func(hash, plain string) bool
}

func NewUserService(d Deps, bcryptCost int) *UserService {
	return &UserService{base: newBase(d), bcryptCost: bcryptCost, verify: utils.VerifyPassword}
}

type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	PhoneNumber string
	DateOfBirth *time.Time
	AvatarURL   *string
	Role        model.UserRole
}

type UpdateUserInput struct {
	Username    *string
	Email       *string
	PhoneNumber *string
	DateOfBirth *time.Time
	AvatarURL   *string
	IsVerified  *bool
}

func (s *UserService) validateUpdate(in UpdateUserInput) error {
	if in.Username != nil {
		if err := model.ValidateUsername(*in.Username); err != nil {
			return err
		}
	}
	if in.Email != nil {
		if err := model.ValidateEmail(*in.Email); err != nil {
			return err
		}
	}
	if in.PhoneNumber != nil {
		if err := model.ValidatePhoneNumber(*in.PhoneNumber); err != nil {
			return err
		}
	}
	return model.ValidateDateOfBirth(in.DateOfBirth, s.Now())
}

// Create registers a user. Anyone may register as a customer or organizer;
// only administrators can create other administrators.
func (s *UserService) Create(ctx context.Context, actor audit.Actor, in CreateUserInput) (*model.User, error) {
	fail := func(err error) (*model.User, error) {
		s.Audit.Failure(ctx, actor, "USER_CREATION_FAILED", err, map[string]any{"username": in.Username, "role": in.Role})
		return nil, err
	}
	in.Email = model.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validateUpdate(UpdateUserInput{
		Username: &in.Username, Email: &in.Email, PhoneNumber: &in.PhoneNumber, DateOfBirth: in.DateOfBirth,
	}); err != nil {
		return fail(err)
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return fail(err)
	}
	if in.Role == "" {
		in.Role = model.RoleCustomer
	}
	if !in.Role.Valid() {
		return fail(apperr.Validation("role", "unknown role %q", in.Role))
	}
	if in.Role == model.RoleAdmin && !isPrivileged(actor) {
		return fail(apperr.ErrForbidden)
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return fail(err)
	}
	u := &model.User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		PhoneNumber:  in.PhoneNumber,
		DateOfBirth:  in.DateOfBirth,
		AvatarURL:    in.AvatarURL,
		Role:         in.Role,
		CreatedAt:    s.Now(),
	}

	err = s.Tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := ensureUniqueUser(ctx, tx, uuid.Nil, &u.Email, &u.Username); err != nil {
			return err
		}
		// the store's unique keys still catch a racing insert
		return tx.Users().Create(ctx, u)
	})
	if err != nil {
		return fail(err)
	}

	s.set(cache.UserKey(u.ID), *u)
	s.evict(cache.UserEmailKey(u.Email), cache.UserUsernameKey(u.Username))
	s.evictPrefix(cache.UserPagesPrefix)
	s.Audit.Record(ctx, actor, "USER_CREATED", map[string]any{"user_id": u.ID, "username": u.Username, "role": u.Role})
	return u, nil
}

// Register is the public sign-up path. It never creates administrators.
func (s *UserService) Register(ctx context.Context, in CreateUserInput) (*model.User, error) {
	if in.Role == model.RoleAdmin {
		err := fmt.Errorf("%w: administrators cannot self-register", apperr.ErrForbidden)
		s.Audit.Failure(ctx, audit.System, "USER_CREATION_FAILED", err, map[string]any{"username": in.Username, "role": in.Role})
		return nil, err
	}
	return s.Create(ctx, audit.System, in)
}

// ensureUniqueUser rejects an email or username already held by a user
// other than self.
func ensureUniqueUser(ctx context.Context, tx repository.Tx, self uuid.UUID, email, username *string) error {
	if email != nil {
		other, err := tx.Users().FindByEmail(ctx, *email)
		switch {
		case err == nil && other.ID != self:
			return &apperr.DuplicateResourceError{Resource: "User", Identifier: *email}
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			return err
		}
	}
	if username != nil {
		other, err := tx.Users().FindByUsername(ctx, *username)
		switch {
		case err == nil && other.ID != self:
			return &apperr.DuplicateResourceError{Resource: "User", Identifier: *username}
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			return err
		}
	}
	return nil
}

func (s *UserService) Update(ctx context.Context, actor audit.Actor, id uuid.UUID, in UpdateUserInput, opts ...MutateOption) (*model.User, error) {
	if in.Email != nil {
		e := model.NormalizeEmail(*in.Email)
		in.Email = &e
	}
	if err := s.validateUpdate(in); err != nil {
		s.Audit.Failure(ctx, actor, userUpdated.failed, err, map[string]any{"user_id": id})
		return nil, err
	}
	if in.IsVerified != nil && !isPrivileged(actor) {
		err := apperr.ErrForbidden
		s.Audit.Failure(ctx, actor, userUpdated.failed, err, map[string]any{"user_id": id})
		return nil, err
	}

	cfg := mutation(opts)
	var prev, fresh *model.User
	err := s.write(ctx, cfg, func(ctx context.Context, tx repository.Tx) (err error) {
		prev, err = tx.Users().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := cfg.check(prev); err != nil {
			return err
		}
		if err := requireOwner(actor, "User", prev.ID); err != nil {
			return err
		}
		if err := ensureUniqueUser(ctx, tx, id, in.Email, in.Username); err != nil {
			return err
		}
		fresh, err = tx.Users().Update(ctx, id, model.UserPatch{
			Username:    in.Username,
			Email:       in.Email,
			PhoneNumber: in.PhoneNumber,
			DateOfBirth: in.DateOfBirth,
			AvatarURL:   in.AvatarURL,
			IsVerified:  in.IsVerified,
		}, prev.Version)
		return err
	})
	if err != nil {
		s.Logger.Warn("user update failed", "user_id", id, "error", err)
		s.Audit.Failure(ctx, actor, userUpdated.failed, err, map[string]any{"user_id": id})
		return nil, err
	}

	s.refresh(prev, fresh)
	s.Audit.Record(ctx, actor, userUpdated.done, map[string]any{"user_id": id, "version": fresh.Version})
	return fresh, nil
}

// refresh caches fresh and drops lookups under both the old and the new
// email and username.
func (s *UserService) refresh(prev, fresh *model.User) {
	s.set(cache.UserKey(fresh.ID), *fresh)
	s.evict(
		cache.UserEmailKey(prev.Email), cache.UserEmailKey(fresh.Email),
		cache.UserUsernameKey(prev.Username), cache.UserUsernameKey(fresh.Username),
	)
	s.evictPrefix(cache.UserPagesPrefix)
}

// Delete removes the user together with its customer and organizer
// profiles. A profile that still holds tickets or owns events blocks the
// delete.
func (s *UserService) Delete(ctx context.Context, actor audit.Actor, id uuid.UUID) (bool, error) {
	var (
		deleted bool
		cur     *model.User
		cust    *model.Customer
		org     *model.Organizer
	)
	err := s.Tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		cur, err = tx.Users().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, "User", cur.ID); err != nil {
			return err
		}
		// profiles go first; their keys are evicted after commit
		if cust, err = dropCustomerProfile(ctx, tx, id); err != nil {
			return err
		}
		if org, err = dropOrganizerProfile(ctx, tx, id); err != nil {
			return err
		}
		deleted, err = tx.Users().Delete(ctx, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.Audit.Failure(ctx, actor, "USER_DELETION_FAILED", err, map[string]any{"user_id": id})
		return false, err
	}
	if !deleted {
		return false, nil
	}

	s.evict(cache.UserKey(id), cache.UserEmailKey(cur.Email), cache.UserUsernameKey(cur.Username))
	s.evictPrefix(cache.UserPagesPrefix)
	details := map[string]any{"user_id": id, "username": cur.Username}
	if cust != nil {
		s.evict(cache.CustomerKey(cust.ID), cache.CustomerUserKey(id), cache.CustomerTicketsKey(cust.ID))
		s.evictPrefix(cache.CustomerPagesPrefix)
		details["customer_id"] = cust.ID
	}
	if org != nil {
		s.evict(cache.OrganizerKey(org.ID), cache.OrganizerEventsKey(org.ID))
		s.evictPrefix(cache.OrganizerPagesPrefix)
		details["organizer_id"] = org.ID
	}
	s.Audit.Record(ctx, actor, "USER_DELETED", details)
	return true, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return fetch(ctx, &s.base, cache.UserKey(id), func(ctx context.Context, tx repository.Tx) (*model.User, error) {
		return tx.Users().FindByID(ctx, id)
	})
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	return fetch(ctx, &s.base, cache.UserEmailKey(email), func(ctx context.Context, tx repository.Tx) (*model.User, error) {
		return tx.Users().FindByEmail(ctx, email)
	})
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return fetch(ctx, &s.base, cache.UserUsernameKey(username), func(ctx context.Context, tx repository.Tx) (*model.User, error) {
		return tx.Users().FindByUsername(ctx, username)
	})
}

func (s *UserService) List(ctx context.Context, page repository.Page) ([]model.User, error) {
	page = page.Normalize()
	return fetchList(ctx, &s.base, cache.UserPageKey(page.Number, page.Size), func(ctx context.Context, tx repository.Tx) ([]model.User, error) {
		return tx.Users().FindAll(ctx, page)
	})
}

// Authenticate checks a login (email or username) and password and stamps
// the last login time. Unknown logins and wrong passwords fail alike. The
// password hash is compared outside any transaction.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.TrimSpace(login)
	fail := func(err error) (*model.User, error) {
		s.Audit.Failure(ctx, audit.System, "USER_LOGIN_FAILED", err, map[string]any{"login": login})
		return nil, err
	}

	var found *model.User
	err := s.Tx.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		if strings.Contains(login, "@") {
			found, err = tx.Users().FindByEmail(ctx, model.NormalizeEmail(login))
		} else {
			found, err = tx.Users().FindByUsername(ctx, login)
		}
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return fail(apperr.ErrInvalidCredentials)
	}
	if err != nil {
		return fail(err)
	}
	if !s.verify(found.PasswordHash, password) {
		return fail(apperr.ErrInvalidCredentials)
	}

	var prev, fresh *model.User
	err = s.Tx.WithRetry(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		prev, err = tx.Users().FindByID(ctx, found.ID)
		if err != nil {
			return err
		}
		now := s.Now()
		fresh, err = tx.Users().Update(ctx, prev.ID, model.UserPatch{LastLogin: &now}, prev.Version)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		// deleted since the lookup
		return fail(apperr.ErrInvalidCredentials)
	}
	if err != nil {
		return fail(err)
	}
	s.refresh(prev, fresh)
	s.Audit.Record(ctx, audit.Actor{ID: fresh.ID, Role: fresh.Role}, "USER_LOGIN", map[string]any{"user_id": fresh.ID})
	return fresh, nil
}
