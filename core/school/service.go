package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shuleboard/core"
)

var (
	// errors
	ErrNotFound           = errors.New("school not found")
	ErrCodeExists         = errors.New("school code already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type (
	Repository interface {
		// CreateSchool returns ErrCodeExists when the code is taken.
		CreateSchool(ctx context.Context, s School) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		GetSchoolByCode(ctx context.Context, code string) (School, error)
		UpdateSchoolFeatures(ctx context.Context, id string, features Features) (School, error)
		UpdateSchoolPassword(ctx context.Context, id string, hash []byte) (School, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create signs a new school up. `ns` is expected to be validated.
func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	if _, err := svc.repo.GetSchoolByCode(ctx, ns.Code); err == nil {
		return School{}, codeExistsError()
	} else if errors.Cause(err) != ErrNotFound {
		return School{}, errors.Wrap(err, "checking school code")
	}

	now := time.Now().UTC()
	s := School{
		Code:      ns.Code,
		Name:      ns.Name,
		Features:  DefaultFeatures(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SetPassword(ns.Password); err != nil {
		return School{}, errors.Wrap(err, "hashing password")
	}

	s, err := svc.repo.CreateSchool(ctx, s)
	if err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return School{}, codeExistsError()
		}
		return School{}, errors.Wrap(err, "creating school")
	}
	return s, nil
}

func codeExistsError() error {
	return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "school_code", Error: ErrCodeExists.Error()})
}

// Authenticate returns ErrInvalidCredentials for both unknown codes and wrong passwords.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (School, error) {
	s, err := svc.repo.GetSchoolByCode(ctx, core.CleanString(creds.Code))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return School{}, ErrInvalidCredentials
		}
		return School{}, errors.Wrap(err, "getting school")
	}
	if err := s.CheckPassword(creds.Password); err != nil {
		return School{}, ErrInvalidCredentials
	}
	return s, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *Service) GetByCode(ctx context.Context, code string) (School, error) {
	return svc.repo.GetSchoolByCode(ctx, core.CleanString(code))
}

func (svc *Service) UpdateFeatures(ctx context.Context, id string, fu FeaturesUpdate) (School, error) {
	s, err := svc.repo.GetSchoolByID(ctx, id)
	if err != nil {
		return School{}, err
	}
	return svc.repo.UpdateSchoolFeatures(ctx, id, fu.apply(s.Features))
}

// ResetPassword sets a new password for the school identified by `code`.
func (svc *Service) ResetPassword(ctx context.Context, code, pwd string) (School, error) {
	s, err := svc.repo.GetSchoolByCode(ctx, core.CleanString(code))
	if err != nil {
		return School{}, err
	}
	if err = s.SetPassword(pwd); err != nil {
		return School{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateSchoolPassword(ctx, s.ID, s.PasswordHash)
}
