package storyboard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// validateStrict checks the cross references the model is asked to honour: unique event ids,
// frames pointing at known events, frame indices contiguous from 0 and within the per-event cap.
func validateStrict(result *GenerationResult, maxFramesPerEvent int) error {
	if result.Error != "" {
		return fmt.Errorf("model declined the request: %s", result.Error)
	}

	var errs []error
	if err := structValidator.Struct(result); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	events := make(map[string]bool, len(result.Events))
	for _, ev := range result.Events {
		if events[ev.ID] {
			errs = append(errs, fmt.Errorf("duplicate event id %q", ev.ID))
		}
		events[ev.ID] = true
	}

	indices := make(map[string][]int)
	for i, fr := range result.Frames {
		if !events[fr.EventID] {
			errs = append(errs, fmt.Errorf("frames[%d] references unknown event %q", i, fr.EventID))
			continue
		}
		indices[fr.EventID] = append(indices[fr.EventID], fr.FrameIndex)
	}

	ids := make([]string, 0, len(indices))
	for id := range indices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		idx := indices[id]
		if maxFramesPerEvent > 0 && len(idx) > maxFramesPerEvent {
			errs = append(errs, fmt.Errorf("event %q has %d frames, limit is %d", id, len(idx), maxFramesPerEvent))
		}
		sort.Ints(idx)
		for want, got := range idx {
			if got != want {
				errs = append(errs, fmt.Errorf("event %q frame indices are not contiguous from 0", id))
				break
			}
		}
	}

	return errors.Join(errs...)
}
