package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teslacam/models"
)

func TestFind(t *testing.T) {
	evs := []models.Event{{ID: "/cam/a-front.mp4"}, {ID: "/cam/b-front.mp4"}, {ID: "7"}}

	ev, err := Find(evs, "1")
	require.NoError(t, err)
	assert.Equal(t, "/cam/b-front.mp4", ev.ID)

	ev, err = Find(evs, "/cam/a-front.mp4")
	require.NoError(t, err)
	assert.Same(t, &evs[0], ev)

	_, err = Find(evs, "3")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = Find(evs, "-1")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = Find(evs, "/cam/missing.mp4")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = Find(nil, "0")
	assert.ErrorIs(t, err, ErrEventNotFound)
}
