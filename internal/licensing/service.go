package licensing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authkey/backend/internal/models"
	"gorm.io/gorm"
)

// Service owns the license lifecycle: issuance, validation with first-use
// binding, explicit activation, and the administrative operations. It holds a
// reference to an injected store handle and no other state.
type Service struct {
	db      *gorm.DB
	tracker *Tracker
	now     func() time.Time
}

// NewService creates the lifecycle service. tracker may be nil; telemetry is
// then skipped entirely.
func NewService(db *gorm.DB, tracker *Tracker) *Service {
	return &Service{
		db:      db,
		tracker: tracker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Issue generates a new key and persists the license record.
// durationDays == 0 means the license never expires; otherwise the deadline is
// fixed at issuance time and never recomputed.
func (s *Service) Issue(note, botName string, durationDays int) (*models.License, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	if botName == "" {
		botName = "Generic Bot"
	}

	lic := &models.License{
		Key:      key,
		Note:     note,
		BotName:  botName,
		IsActive: true,
	}
	if durationDays > 0 {
		expiresAt := s.now().Add(time.Duration(durationDays) * 24 * time.Hour)
		lic.ExpiresAt = &expiresAt
	}

	if err := s.db.Create(lic).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrGenerationConflict
		}
		return nil, fmt.Errorf("create license: %w", err)
	}
	return lic, nil
}

// Validate checks a key against a machine fingerprint and auto-binds the key
// on first use. The checks run in a fixed order: existence, administrative
// disable, expiry, then binding. Disabled wins over expired, and an expired
// key never binds.
func (s *Service) Validate(key, fingerprint string) (*Result, error) {
	lic, err := s.findByKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return denied(ReasonInvalidKey, "License key does not exist"), nil
		}
		return nil, err
	}

	result, err := s.gateAndBind(lic, fingerprint)
	if err != nil {
		return nil, err
	}

	s.tracker.Record(lic.Key, result.Valid)
	return result, nil
}

// Activate performs an explicit pre-binding. It enforces the same disabled and
// expiry gates as Validate, but reports activation-path reason codes: a
// missing key is not_found and a foreign binding is already_bound. Activating
// a key already bound to the same machine succeeds idempotently.
func (s *Service) Activate(key, fingerprint string) (*Result, error) {
	lic, err := s.findByKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return denied(ReasonNotFound, "License key does not exist"), nil
		}
		return nil, err
	}

	result, err := s.gateAndBind(lic, fingerprint)
	if err != nil {
		return nil, err
	}
	if result.Reason == ReasonHWIDMismatch {
		result = denied(ReasonAlreadyBound, "License key is already in use on another machine")
	}
	return result, nil
}

// gateAndBind runs the ordered lifecycle checks shared by Validate and
// Activate, including the one state mutation: the first-use bind.
func (s *Service) gateAndBind(lic *models.License, fingerprint string) (*Result, error) {
	if !lic.IsActive {
		return denied(ReasonKeyDisabled, "License key has been disabled"), nil
	}
	if lic.IsExpired(s.now()) {
		return denied(ReasonExpired, "License has expired. Please renew your subscription."), nil
	}

	if !lic.IsBound() {
		bound, err := s.tryBind(lic, fingerprint)
		if err != nil {
			return nil, err
		}
		if bound {
			return granted(lic, true, "License activated and bound to this machine"), nil
		}
		// Lost the first-use race: another request bound the key between our
		// read and the guarded update. Re-read and judge against the winner.
		fresh, err := s.findByKey(lic.Key)
		if err != nil {
			return nil, err
		}
		lic = fresh
	}

	if lic.HWID != nil && *lic.HWID == fingerprint {
		return granted(lic, false, "Access granted"), nil
	}
	return denied(ReasonHWIDMismatch, "License key belongs to another machine"), nil
}

// tryBind atomically claims an unbound license for the given fingerprint.
// The hwid IS NULL predicate makes the read-check-write race safe: of any
// number of concurrent first uses, exactly one update matches a row.
func (s *Service) tryBind(lic *models.License, fingerprint string) (bool, error) {
	activatedAt := s.now()
	res := s.db.Model(&models.License{}).
		Where("id = ? AND hwid IS NULL", lic.ID).
		Updates(map[string]interface{}{
			"hwid":         fingerprint,
			"activated_at": activatedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("bind license: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	lic.HWID = &fingerprint
	lic.ActivatedAt = &activatedAt
	return true, nil
}

// ToggleActive flips the administrative kill-switch and returns the new state.
// It never touches the binding or the expiry deadline.
func (s *Service) ToggleActive(id uint) (bool, error) {
	var lic models.License
	if err := s.db.First(&lic, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}

	newState := !lic.IsActive
	if err := s.db.Model(&lic).Update("is_active", newState).Error; err != nil {
		return false, fmt.Errorf("toggle license: %w", err)
	}
	return newState, nil
}

// Delete removes a license permanently.
func (s *Service) Delete(id uint) error {
	lic, err := s.Get(id)
	if err != nil {
		return err
	}

	res := s.db.Delete(&models.License{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete license: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.tracker.Forget(lic.Key)
	return nil
}

// List returns all licenses, newest first, straight from the store.
func (s *Service) List() ([]models.License, error) {
	var licenses []models.License
	if err := s.db.Order("created_at DESC, id DESC").Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	return licenses, nil
}

// Get returns a single license by id.
func (s *Service) Get(id uint) (*models.License, error) {
	var lic models.License
	if err := s.db.First(&lic, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lic, nil
}

func (s *Service) findByKey(key string) (*models.License, error) {
	var lic models.License
	if err := s.db.Where("key = ?", NormalizeKey(key)).First(&lic).Error; err != nil {
		return nil, err
	}
	return &lic, nil
}

// isDuplicateKeyError matches unique-constraint violations across the
// postgres driver and the sqlite driver used in tests.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
