package events

import (
	"errors"
	"fmt"
	"strconv"

	"teslacam/models"
)

// ErrEventNotFound is returned by Find when ref matches no event.
var ErrEventNotFound = errors.New("event not found")

// Find resolves ref as a zero-based index into evs, as printed by the list
// command, or else as an event ID.
func Find(evs []models.Event, ref string) (*models.Event, error) {
	if i, err := strconv.Atoi(ref); err == nil {
		if i < 0 || i >= len(evs) {
			return nil, fmt.Errorf("%w: index %d out of range (%d events)", ErrEventNotFound, i, len(evs))
		}
		return &evs[i], nil
	}
	for i := range evs {
		if evs[i].ID == ref {
			return &evs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEventNotFound, ref)
}
