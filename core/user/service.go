package user

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/skillforge/skillforge/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrInvalidOTP     = errors.New("invalid verification code")
)

const otpLen = 5

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		GetTutor(ctx context.Context, id int) (Tutor, error)
		CreateTutor(ctx context.Context, tut Tutor) (Tutor, error)
	}

	// Mailer delivers a message off the caller's critical path.
	Mailer interface {
		SendAsync(msg *core.EmailMessage)
	}

	Service struct {
		repo   Repository
		mailer Mailer
		logger core.Logger
	}
)

func NewService(repo Repository, mailer Mailer, logger core.Logger) *Service {
	return &Service{repo: repo, mailer: mailer, logger: logger}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a user and sends a verification code to their email.
// The verification email is dispatched asynchronously; registration does not
// wait on the mail provider.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	uname := core.CleanString(nu.Username, true /* lower */)
	email := core.CleanString(nu.Email, true /* lower */)
	if err := svc.checkUniqueness(ctx, uname, email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      core.CleanString(nu.Name),
		Username:  uname,
		Email:     email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ValidatePassword(nu.Password, usr); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}

	otp, err := GenerateOTP()
	if err != nil {
		return User{}, errors.Wrap(err, "generating OTP")
	}
	usr.OTP = otp

	usr, err = svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	// tutors get a profile the notification pipeline can resolve a name from
	if usr.IsTutor() {
		if _, err = svc.repo.CreateTutor(ctx, Tutor{UserID: usr.ID}); err != nil {
			return User{}, errors.Wrap(err, "creating tutor profile")
		}
	}

	svc.sendOTPEmail(usr)
	return usr, nil
}

func (svc *Service) sendOTPEmail(usr User) {
	if svc.mailer == nil {
		return
	}
	svc.mailer.SendAsync(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Verification Code",
		TemplateName: "otp",
		TemplateData: struct {
			OTP   string
			Email string
		}{usr.OTP, usr.Email},
		BodyStr: "Your verification code is " + usr.OTP,
	})
}

// VerifyOTP marks a user verified when the provided code matches.
func (svc *Service) VerifyOTP(ctx context.Context, id int, otp string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.OTP == "" || usr.OTP != otp {
		return User{}, ErrInvalidOTP
	}
	usr.IsVerified = true
	usr.OTP = ""
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetTutor(ctx context.Context, id int) (Tutor, error) {
	return svc.repo.GetTutor(ctx, id)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Activate marks the user active and verified, bypassing OTP. Reserved
// for operator tooling.
func (svc *Service) Activate(ctx context.Context, id int) error {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	usr.IsActive = true
	usr.IsVerified = true
	usr.OTP = ""
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// SetRole changes the user's role. Reserved for operator tooling.
func (svc *Service) SetRole(ctx context.Context, id int, role string) error {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *Service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	email := core.CleanString(uu.Email, true /* lower */)
	if uname != "" || email != "" {
		if err = svc.checkUniqueness(ctx, uname, email, usr); err != nil {
			return User{}, err
		}
	}
	if uu.Name != "" {
		usr.Name = core.CleanString(uu.Name)
	}
	if uname != "" {
		usr.Username = uname
	}
	if email != "" {
		usr.Email = email
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err = ValidatePassword(uu.Password, usr); err != nil {
			return User{}, err
		}
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// GenerateOTP returns a 5-digit verification code.
func GenerateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpLen; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	code := n.String()
	for len(code) < otpLen {
		code = "0" + code
	}
	return code, nil
}
