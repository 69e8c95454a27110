package repository

import (
	"context"
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"gorm.io/gorm"
)

type BookingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindBySubject(ctx context.Context, subjectID string, status *models.BookingStatus) ([]models.Booking, error)
	FindClaimedTimes(ctx context.Context, providerID, date string) ([]string, error)
	FindDue(ctx context.Context, today string, after *DueCursor, limit int) ([]models.Booking, error)
	Transition(ctx context.Context, tx *gorm.DB, id string, to models.BookingStatus, at time.Time) (bool, error)
}

// DueCursor is the sort key of the last booking of a FindDue page.
type DueCursor struct {
	Date    string
	EndTime string
	ID      string
}

// CursorOf returns the key FindDue resumes after.
func CursorOf(b models.Booking) *DueCursor {
	return &DueCursor{Date: b.Date, EndTime: b.EndTime, ID: b.ID}
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// Create inserts the booking. A clash with another active booking on the same
// provider slot surfaces as gorm.ErrDuplicatedKey.
func (r *bookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return pick(r.db, tx).WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindBySubject(ctx context.Context, subjectID string, status *models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).Where("subject_id = ?", subjectID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Order("date DESC, start_time DESC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// FindClaimedTimes returns the start times held by active bookings.
func (r *bookingRepository) FindClaimedTimes(ctx context.Context, providerID, date string) ([]string, error) {
	var times []string
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("provider_id = ? AND date = ? AND status IN ?", providerID, date, models.ActiveStatuses).
		Pluck("start_time", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

// FindDue returns one page of active bookings dated on or before today, earliest
// end first, starting after the cursor. A nil cursor starts from the beginning.
func (r *bookingRepository) FindDue(ctx context.Context, today string, after *DueCursor, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).
		Where("status IN ? AND date <= ?", models.ActiveStatuses, today)
	if after != nil {
		q = q.Where("(date, end_time, id) > (?, ?, ?)", after.Date, after.EndTime, after.ID)
	}
	q = q.Order("date ASC, end_time ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// Transition moves the booking to status `to` only if its current status allows
// it. The status check is part of the UPDATE, so it reports false when another
// writer got there first.
func (r *bookingRepository) Transition(ctx context.Context, tx *gorm.DB, id string, to models.BookingStatus, at time.Time) (bool, error) {
	from := fromStatuses(to)
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case models.StatusCompleted:
		updates["completed_at"] = at
	case models.StatusCancelled:
		updates["cancelled_at"] = at
	}

	res := pick(r.db, tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func fromStatuses(to models.BookingStatus) []models.BookingStatus {
	var from []models.BookingStatus
	for _, s := range models.ActiveStatuses {
		if models.CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}
