package events

import (
	"context"
	"errors"

	"teslacam/metadata"
	"teslacam/models"
)

// AnnotationSource is the read side of the metadata store.
type AnnotationSource interface {
	Get(ctx context.Context, id string) (metadata.Annotation, error)
}

// Annotate copies stored tags and notes onto events in place. Events without
// an annotation are left untouched.
func Annotate(ctx context.Context, src AnnotationSource, evs []models.Event) error {
	for i := range evs {
		a, err := src.Get(ctx, evs[i].ID)
		if errors.Is(err, metadata.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		evs[i].Tags = append([]string(nil), a.Tags...)
		evs[i].Notes = a.Notes
	}
	return nil
}

// Filter returns the events carrying tag. An empty tag returns evs unchanged.
func Filter(evs []models.Event, tag string) []models.Event {
	if tag == "" {
		return evs
	}
	var out []models.Event
	for _, ev := range evs {
		for _, t := range ev.Tags {
			if t == tag {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
