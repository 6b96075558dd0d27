package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/shuleboard/core"
	"github.com/trezcool/shuleboard/core/school"
)

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	s.ID = uuid.New().String()
	q := `INSERT INTO schools (id, code, name, password_hash, features, created_at, updated_at)
		VALUES (:id, :code, :name, :password_hash, :features, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, s); err != nil {
		if isUniqueViolation(err) {
			return school.School{}, school.ErrCodeExists
		}
		return school.School{}, dbError(err, "inserting school")
	}
	return s, nil
}

func (repo schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	if !validID(id) {
		return school.School{}, school.ErrNotFound
	}
	var s school.School
	if err := repo.exec.GetContext(ctx, &s, `SELECT * FROM schools WHERE id = $1`, id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "getting school by ID")
	}
	return s, nil
}

func (repo schoolRepository) GetSchoolByCode(ctx context.Context, code string) (school.School, error) {
	var s school.School
	if err := repo.exec.GetContext(ctx, &s, `SELECT * FROM schools WHERE code = $1`, code); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "getting school by code")
	}
	return s, nil
}

func (repo schoolRepository) UpdateSchoolFeatures(ctx context.Context, id string, features school.Features) (school.School, error) {
	if !validID(id) {
		return school.School{}, school.ErrNotFound
	}
	var s school.School
	q := `UPDATE schools SET features = $1, updated_at = now() WHERE id = $2 RETURNING *`
	if err := repo.exec.GetContext(ctx, &s, q, features, id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "updating school features")
	}
	return s, nil
}

func (repo schoolRepository) UpdateSchoolPassword(ctx context.Context, id string, hash []byte) (school.School, error) {
	if !validID(id) {
		return school.School{}, school.ErrNotFound
	}
	var s school.School
	q := `UPDATE schools SET password_hash = $1, updated_at = now() WHERE id = $2 RETURNING *`
	if err := repo.exec.GetContext(ctx, &s, q, hash, id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "updating school password")
	}
	return s, nil
}
