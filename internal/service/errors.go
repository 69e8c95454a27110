package service

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrQuotaExhausted    = errors.New("no remaining sessions in this pool")
	ErrSlotConflict      = errors.New("slot was just booked by someone else, refresh availability and pick another")
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrProviderNotFound  = errors.New("provider not found")
	ErrInvalidTransition = errors.New("booking cannot move to that status")
)

// errTransitionNoop aborts a completion transaction whose booking another
// writer already moved on.
var errTransitionNoop = errors.New("booking already left an active status")
