package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrUserExists     = errors.New("a user with this email, username or Google account already exists")
	ErrGoogleProfile  = errors.New("google profile has no email")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists if another user (not in excludedUsers)
		// already uses username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		LoginWithGoogle(ctx context.Context, profile GoogleProfile) (User, error)
		Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	// DeleteHook releases what other domains hold for the users about to be deleted.
	// It runs in the deletion's transaction.
	DeleteHook func(ctx context.Context, tx core.DBExecutor, ids []string) error

	Service struct {
		db          core.DB
		repo        Repository
		mailSvc     core.EmailService
		conf        *core.Config
		deleteHooks []DeleteHook
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config, deleteHooks ...DeleteHook) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.Server.PasswordResetTimeoutDelta

	return &Service{
		db:          db,
		repo:        repo,
		mailSvc:     mailSvc,
		conf:        conf,
		deleteHooks: deleteHooks,
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, exclUsers); err != nil {
		var field string
		switch pkgerrors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return pkgerrors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  null.NewString(nu.Username, nu.Username != ""),
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// LoginWithGoogle finds the user matching a Google profile, by Google ID first and then by email,
// and refreshes their profile. Unknown users are registered as students.
func (svc *Service) LoginWithGoogle(ctx context.Context, profile GoogleProfile) (User, error) {
	profile.Clean()
	if profile.Email == "" || profile.Subject == "" {
		return User{}, ErrGoogleProfile
	}

	var usr User
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		usr, err = svc.repo.GetUser(ctx, GetFilter{GoogleID: profile.Subject}, tx)
		if pkgerrors.Cause(err) == ErrNotFound {
			usr, err = svc.repo.GetUser(ctx, GetFilter{Email: profile.Email}, tx)
		}

		now := time.Now().UTC()
		switch pkgerrors.Cause(err) {
		case nil:
			usr.GoogleID = null.StringFrom(profile.Subject)
			usr.Name = profile.Name
			usr.GivenName = profile.GivenName
			usr.FamilyName = profile.FamilyName
			usr.Picture = profile.Picture
			usr.Locale = profile.Locale
			usr.LastLogin = null.TimeFrom(now)
			usr.UpdatedAt = now
			usr, err = svc.repo.UpdateUser(ctx, usr, tx)
			return pkgerrors.Wrap(err, "updating user profile")
		case ErrNotFound:
			usr = User{
				ID:         uuid.NewString(),
				Email:      profile.Email,
				Name:       profile.Name,
				GivenName:  profile.GivenName,
				FamilyName: profile.FamilyName,
				Picture:    profile.Picture,
				Locale:     profile.Locale,
				GoogleID:   null.StringFrom(profile.Subject),
				Role:       RoleStudent,
				IsActive:   true,
				CreatedAt:  now,
				UpdatedAt:  now,
				LastLogin:  null.TimeFrom(now),
			}
			usr, err = svc.repo.CreateUser(ctx, usr, tx)
			return pkgerrors.Wrap(err, "creating user")
		default:
			return pkgerrors.Wrap(err, "finding user")
		}
	})
	return usr, err
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, orderings)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, pkgerrors.Wrap(err, "finding user by ID")
	}
	usr.Name = uu.Name
	usr.Username = null.NewString(uu.Username, uu.Username != "")
	usr.Email = uu.Email
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

// Delete deletes users after running the delete hooks, in a single transaction.
func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, hook := range svc.deleteHooks {
			if err := hook(ctx, tx, ids); err != nil {
				return pkgerrors.Wrap(err, "running delete hook")
			}
		}
		return pkgerrors.Wrap(svc.repo.DeleteUsers(ctx, ids, tx), "deleting users")
	})
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": makeToken(usr),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return pkgerrors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return pkgerrors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return pkgerrors.Wrap(err, fmt.Sprintf("updating user %s", usr.ID))
}
