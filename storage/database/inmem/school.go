package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shuleboard/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) find(match func(s *school.School) bool) (*school.School, bool) {
	for _, s := range repo.db.rows {
		if match(s) {
			return s, true
		}
	}
	return nil, false
}

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.find(func(row *school.School) bool { return row.Code == s.Code }); ok {
		return school.School{}, school.ErrCodeExists
	}
	s.ID = uuid.New().String()
	repo.db.rows = append(repo.db.rows, &s)
	return s, nil
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.find(func(row *school.School) bool { return row.ID == id }); ok {
		return *s, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByCode(_ context.Context, code string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.find(func(row *school.School) bool { return row.Code == code }); ok {
		return *s, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchoolFeatures(_ context.Context, id string, features school.Features) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.find(func(row *school.School) bool { return row.ID == id })
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	s.Features = features
	s.UpdatedAt = time.Now().UTC()
	return *s, nil
}

func (repo *schoolRepository) UpdateSchoolPassword(_ context.Context, id string, hash []byte) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.find(func(row *school.School) bool { return row.ID == id })
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	s.PasswordHash = hash
	s.UpdatedAt = time.Now().UTC()
	return *s, nil
}
