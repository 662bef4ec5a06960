package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input carries the writable address fields.
type Input struct {
	Type       enums.AddressType
	FullName   string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
}

// Service manages a user's address book. At most one default exists per
// address type; promoting one demotes its siblings.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error)
	Update(ctx context.Context, userID, id uuid.UUID, input Input) (*models.Address, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
	DefaultFor(ctx context.Context, userID uuid.UUID, addrType enums.AddressType) (*models.Address, error)
}

type service struct {
	db *gorm.DB
	tx txRunner
}

// NewService builds the address service.
func NewService(db *gorm.DB, tx txRunner) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{db: db, tx: tx}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing addresses")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).First(&addr, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading address")
	}
	return &addr, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	addr := &models.Address{
		UserID:     userID,
		Type:       input.Type,
		FullName:   input.FullName,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    input.Country,
		IsDefault:  input.IsDefault,
	}
	if addr.Country == "" {
		addr.Country = "India"
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if addr.IsDefault {
			if err := demoteSiblings(ctx, tx, userID, addr.Type, uuid.Nil); err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Create(addr).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating address")
	}
	return addr, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input Input) (*models.Address, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	addr, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	addr.Type = input.Type
	addr.FullName = input.FullName
	addr.Phone = input.Phone
	addr.Line1 = input.Line1
	addr.Line2 = input.Line2
	addr.City = input.City
	addr.State = input.State
	addr.PostalCode = input.PostalCode
	if input.Country != "" {
		addr.Country = input.Country
	}
	addr.IsDefault = input.IsDefault

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if addr.IsDefault {
			if err := demoteSiblings(ctx, tx, userID, addr.Type, addr.ID); err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Save(addr).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating address")
	}
	return addr, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Address{})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "deleting address")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

// SetDefault promotes the address and demotes every sibling of the same type.
func (s *service) SetDefault(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	addr, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := demoteSiblings(ctx, tx, userID, addr.Type, addr.ID); err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&models.Address{}).
			Where("id = ?", addr.ID).
			Update("is_default", true).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "setting default address")
	}
	addr.IsDefault = true
	return addr, nil
}

// DefaultFor returns the user's default address of the given type, falling
// back to the most recent one when no default is marked.
func (s *service) DefaultFor(ctx context.Context, userID uuid.UUID, addrType enums.AddressType) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, addrType).
		Order("is_default DESC, created_at DESC").
		First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no address on file")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading default address")
	}
	return &addr, nil
}

func demoteSiblings(ctx context.Context, tx *gorm.DB, userID uuid.UUID, addrType enums.AddressType, keep uuid.UUID) error {
	q := tx.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_id = ? AND type = ? AND is_default = ?", userID, addrType, true)
	if keep != uuid.Nil {
		q = q.Where("id <> ?", keep)
	}
	return q.Update("is_default", false).Error
}

func validateInput(input Input) error {
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown address type")
	}
	for field, value := range map[string]string{
		"full_name":   input.FullName,
		"phone":       input.Phone,
		"line1":       input.Line1,
		"city":        input.City,
		"state":       input.State,
		"postal_code": input.PostalCode,
	} {
		if value == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
		}
	}
	return nil
}
