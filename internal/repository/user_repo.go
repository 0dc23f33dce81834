package repository

import (
	"go-material-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByEmail(email string) (*model.User, error)
	FindByID(id uuid.UUID) (*model.User, error)
	Create(user *model.User) error
	UpdateTokenVersion(userID uuid.UUID, version string) error
	UpdatePassword(userID uuid.UUID, hash string) error
	ReplacePrivileges(user *model.User, privileges []model.Privilege) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) withAccess() *gorm.DB {
	return r.db.Preload("Role").Preload("Role.Privileges").Preload("Privileges")
}

func (r *userRepo) FindByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.withAccess().Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.withAccess().First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *userRepo) UpdateTokenVersion(userID uuid.UUID, version string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).Update("token_version", version).Error
}

func (r *userRepo) UpdatePassword(userID uuid.UUID, hash string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).Update("password", hash).Error
}

func (r *userRepo) ReplacePrivileges(user *model.User, privileges []model.Privilege) error {
	return r.db.Model(user).Association("Privileges").Replace(privileges)
}
