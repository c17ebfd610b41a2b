package database

import (
	"bank-gateway-api/internal/models"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrBankRecordNotFound is returned when no matching payment record exists
var ErrBankRecordNotFound = errors.New("bank record not found")

// CreateBank persists a new payment record
func CreateBank(bank *models.Bank) error {
	if err := DB.Create(bank).Error; err != nil {
		return fmt.Errorf("failed to create bank record: %w", err)
	}
	return nil
}

// GetBankByTrackingCode gets a payment record by bank type and tracking code
func GetBankByTrackingCode(bankType models.BankType, trackingCode string) (*models.Bank, error) {
	var bank models.Bank
	err := DB.Where("bank_type = ? AND tracking_code = ?", bankType, trackingCode).First(&bank).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankRecordNotFound
		}
		return nil, err
	}
	return &bank, nil
}

// GetBankByID reloads a payment record by primary key
func GetBankByID(id uint) (*models.Bank, error) {
	var bank models.Bank
	err := DB.First(&bank, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankRecordNotFound
		}
		return nil, err
	}
	return &bank, nil
}

// FindPendingByTrackingCode finds a record that is still waiting at the bank.
// Used by the callback fallback correlation, which must only consider
// REDIRECT_TO_BANK records to shrink the ambiguity window.
func FindPendingByTrackingCode(bankType models.BankType, trackingCode string) (*models.Bank, error) {
	var bank models.Bank
	err := DB.Where("bank_type = ? AND tracking_code = ? AND status = ?",
		bankType, trackingCode, models.StatusRedirectToBank).First(&bank).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankRecordNotFound
		}
		return nil, err
	}
	return &bank, nil
}

// TrackingCodeExists reports whether any record already uses the given
// tracking code for this bank type. Tracking codes are never reused, the
// unique index on (bank_type, tracking_code) enforces it at the database too.
func TrackingCodeExists(bankType models.BankType, trackingCode string) (bool, error) {
	var count int64
	err := DB.Model(&models.Bank{}).
		Where("bank_type = ? AND tracking_code = ?", bankType, trackingCode).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TransitionStatus advances a record's status with a conditional update keyed
// on the expected prior status. Returns false when the record was not in the
// expected status, which is how two concurrent callback deliveries for the
// same record are serialized.
func TransitionStatus(id uint, from, to models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = make(map[string]interface{})
	}
	updates["status"] = to

	result := DB.Model(&models.Bank{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
