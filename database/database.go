// Package database keeps the local sqlite state: device fingerprints bound
// to attendee ids. Everything else lives in the external document stores.
package database

import (
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Rahul-7375/attendance-cist/models"
)

// DB wraps the gorm handle so it can be passed around explicitly instead of
// living as package state.
type DB struct {
	gorm *gorm.DB
}

func Connect(path string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open fingerprint database: %w", err)
	}
	if err := gdb.AutoMigrate(&models.DeviceFingerprint{}); err != nil {
		return nil, fmt.Errorf("migrate fingerprint database: %w", err)
	}
	return &DB{gorm: gdb}, nil
}

// ValidateFingerprint checks the attendee's device binding. A first-time
// attendee is bound to the presented fingerprint; afterwards only that
// fingerprint passes.
func (db *DB) ValidateFingerprint(attendeeID, fingerprint string) (bool, error) {
	var binding models.DeviceFingerprint
	result := db.gorm.First(&binding, "attendee_id = ?", attendeeID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Info().Str("attendee", attendeeID).Msg("binding new device fingerprint")
			binding = models.DeviceFingerprint{
				AttendeeID:         attendeeID,
				BrowserFingerprint: fingerprint,
			}
			if err := db.gorm.Create(&binding).Error; err != nil {
				return false, err
			}
			return true, nil
		}
		return false, result.Error
	}
	return binding.BrowserFingerprint == fingerprint, nil
}

// ResetFingerprint clears an attendee's binding so they can enroll a new
// device. Presenter-initiated.
func (db *DB) ResetFingerprint(attendeeID string) error {
	return db.gorm.Where("attendee_id = ?", attendeeID).Delete(&models.DeviceFingerprint{}).Error
}
