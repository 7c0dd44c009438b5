package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/in-nis/untis-back/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

var DB *gorm.DB

func InitDB(dsn string) {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// AutoMigrate will create/update tables automatically
	err = DB.AutoMigrate(&models.User{}, &models.Profile{}, &models.Vacation{}, &models.ManualExam{})
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	log.Println("✅ Database connected and migrated")
}

// Store runs every query the server needs against one gorm handle.
type Store struct {
	db *gorm.DB
}

func NewStore(g *gorm.DB) *Store {
	return &Store{db: g}
}

// Default is the Store over the connection opened by InitDB.
func Default() *Store {
	return NewStore(DB)
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database not initialised")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LinkGoogleUser finds the account of a Google login by Google id, then by
// e-mail, and creates one named after the e-mail when neither exists.
func (s *Store) LinkGoogleUser(ctx context.Context, googleID, email string) (*models.User, error) {
	var user models.User
	tx := s.db.WithContext(ctx)

	err := tx.Where("google_id = ?", googleID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = tx.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if err := tx.Model(&user).Update("google_id", googleID).Error; err != nil {
			return nil, err
		}
		user.GoogleID = googleID
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Username: email, Email: email, GoogleID: googleID}
		if err := tx.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	default:
		return nil, err
	}
}

// --- profiles ---

// GetProfile returns the stored profile, or an empty one.
func (s *Store) GetProfile(ctx context.Context, userID uint) (models.ProfileData, error) {
	var data models.ProfileData
	var p models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return data, err
	default:
		if err := json.Unmarshal([]byte(p.Data), &data); err != nil {
			return data, fmt.Errorf("decode profile of user %d: %w", userID, err)
		}
	}
	data.Normalize()
	return data, nil
}

// SaveProfile replaces the profile of userID.
func (s *Store) SaveProfile(ctx context.Context, userID uint, data models.ProfileData) error {
	data.Normalize()
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	p := models.Profile{UserID: userID, Data: string(raw)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&p).Error
}

// --- vacations ---

func (s *Store) ListVacations(ctx context.Context) ([]models.Vacation, error) {
	var out []models.Vacation
	if err := s.db.WithContext(ctx).Order("start_date, title").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateVacation(ctx context.Context, v *models.Vacation) error {
	return s.db.WithContext(ctx).Create(v).Error
}

func (s *Store) UpdateVacation(ctx context.Context, v *models.Vacation) error {
	res := s.db.WithContext(ctx).Model(&models.Vacation{ID: v.ID}).Updates(map[string]any{
		"title":      v.Title,
		"start_date": v.StartDate,
		"end_date":   v.EndDate,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteVacation(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Vacation{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceVacations swaps the whole table in one transaction.
func (s *Store) ReplaceVacations(ctx context.Context, vs []models.Vacation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Vacation{}).Error; err != nil {
			return err
		}
		if len(vs) == 0 {
			return nil
		}
		return tx.Create(&vs).Error
	})
}

// --- manual exams ---

// ListManualExams returns the exams of grade, or of every grade for "".
func (s *Store) ListManualExams(ctx context.Context, grade string) ([]models.ManualExam, error) {
	var out []models.ManualExam
	tx := s.db.WithContext(ctx)
	if grade != "" {
		tx = tx.Where("grade = ?", grade)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (s *Store) CreateManualExam(ctx context.Context, e *models.ManualExam) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *Store) DeleteManualExam(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ManualExam{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ReplaceManualExams(ctx context.Context, es []models.ManualExam) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ManualExam{}).Error; err != nil {
			return err
		}
		if len(es) == 0 {
			return nil
		}
		return tx.Create(&es).Error
	})
}
