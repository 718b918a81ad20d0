package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/provider/google"
)

// EventReader serves cache-first calendar reads. Satisfied by
// *cachesync.Synchronizer.
type EventReader interface {
	Events(ctx context.Context, userID uuid.UUID, token string, limit int) ([]*domain.CachedEvent, error)
}

// EventCreator creates provider events. Satisfied by *google.Client.
type EventCreator interface {
	CreateEvent(ctx context.Context, token string, ev google.NewEvent) (*google.Event, error)
}

type calendarTools struct {
	reader  EventReader
	creator EventCreator
}

// RegisterCalendar wires the calendar tools into the registry.
func RegisterCalendar(reg *Registry, reader EventReader, creator EventCreator) error {
	ct := &calendarTools{reader: reader, creator: creator}

	specs := []Spec{
		{
			Name:        "calendar_list_events",
			Description: "List the user's upcoming calendar events, optionally within a time window.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"time_min": {"type": "string", "description": "RFC3339 window start; defaults to now."},
					"time_max": {"type": "string", "description": "RFC3339 window end."},
					"limit": {"type": "integer", "default": 20}
				}
			}`),
			ActionLevel: ActionRead,
			Handler:     ct.listEvents,
		},
		{
			Name:        "calendar_find_availability",
			Description: "Report busy intervals and free gaps in the user's calendar within a time window.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"time_min": {"type": "string", "description": "RFC3339 window start; defaults to now."},
					"time_max": {"type": "string", "description": "RFC3339 window end; defaults to 7 days out."}
				}
			}`),
			ActionLevel: ActionRead,
			Handler:     ct.findAvailability,
		},
		{
			Name:        "calendar_create_event",
			Description: "Create a calendar event. Times accept RFC3339 or YYYY-MM-DDTHH:MM in the user's timezone.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"summary": {"type": "string"},
					"description": {"type": "string"},
					"location": {"type": "string"},
					"start": {"type": "string"},
					"end": {"type": "string"},
					"attendees": {"type": "array", "items": {"type": "string"}},
					"with_conference": {"type": "boolean", "description": "Attach a video conference link."}
				},
				"required": ["summary", "start", "end"]
			}`),
			ActionLevel: ActionWrite,
			Handler:     ct.createEvent,
		},
	}

	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return fmt.Errorf("tool.RegisterCalendar: %w", err)
		}
	}
	return nil
}

type eventView struct {
	ID        string   `json:"id"`
	Summary   string   `json:"summary"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Location  string   `json:"location,omitempty"`
	Attendees []string `json:"attendees,omitempty"`
}

func (ct *calendarTools) listEvents(ctx context.Context, args json.RawMessage, tc Context) Result {
	if tc.GoogleToken == "" {
		return Fail(CodeMissingGoogleToken, "calendar_list_events needs a Google access token")
	}

	var in struct {
		TimeMin string `json:"time_min"`
		TimeMax string `json:"time_max"`
		Limit   int    `json:"limit"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return Fail(CodeInvalidArguments, "calendar_list_events: "+err.Error())
		}
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}

	events, err := ct.reader.Events(ctx, tc.UserID, tc.GoogleToken, 0)
	if err != nil {
		return Fail(CodeToolError, "calendar lookup failed")
	}

	views := filterEvents(events, in.TimeMin, in.TimeMax, in.Limit)
	return Ok(map[string]any{"events": views, "count": len(views)})
}

func filterEvents(events []*domain.CachedEvent, timeMin, timeMax string, limit int) []eventView {
	sort.Slice(events, func(i, j int) bool { return events[i].Start < events[j].Start })

	views := make([]eventView, 0, limit)
	for _, ev := range events {
		// Provider datetimes and all-day dates both order lexically, so the
		// window filter is a plain string comparison.
		if timeMin != "" && ev.End != "" && ev.End < timeMin {
			continue
		}
		if timeMax != "" && ev.Start > timeMax {
			continue
		}
		views = append(views, eventView{
			ID:        ev.ProviderID,
			Summary:   ev.Summary,
			Start:     ev.Start,
			End:       ev.End,
			Location:  ev.Location,
			Attendees: ev.Attendees,
		})
		if len(views) >= limit {
			break
		}
	}
	return views
}

type interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (ct *calendarTools) findAvailability(ctx context.Context, args json.RawMessage, tc Context) Result {
	if tc.GoogleToken == "" {
		return Fail(CodeMissingGoogleToken, "calendar_find_availability needs a Google access token")
	}

	var in struct {
		TimeMin string `json:"time_min"`
		TimeMax string `json:"time_max"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return Fail(CodeInvalidArguments, "calendar_find_availability: "+err.Error())
		}
	}

	from := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, in.TimeMin); err == nil {
		from = t
	}
	to := from.Add(7 * 24 * time.Hour)
	if t, err := time.Parse(time.RFC3339, in.TimeMax); err == nil && t.After(from) {
		to = t
	}

	events, err := ct.reader.Events(ctx, tc.UserID, tc.GoogleToken, 0)
	if err != nil {
		return Fail(CodeToolError, "calendar lookup failed")
	}

	// Merge timed events into a sorted busy view; all-day entries are skipped
	// because they carry dates, not clock intervals.
	var busy []interval
	for _, ev := range events {
		start, err1 := time.Parse(time.RFC3339, ev.Start)
		end, err2 := time.Parse(time.RFC3339, ev.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if end.Before(from) || start.After(to) {
			continue
		}
		busy = append(busy, interval{
			Start: start.UTC().Format(time.RFC3339),
			End:   end.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })

	merged := make([]interval, 0, len(busy))
	for _, iv := range busy {
		if n := len(merged); n > 0 && iv.Start <= merged[n-1].End {
			if iv.End > merged[n-1].End {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	free := make([]interval, 0, len(merged)+1)
	cursor := from.Format(time.RFC3339)
	for _, iv := range merged {
		if iv.Start > cursor {
			free = append(free, interval{Start: cursor, End: iv.Start})
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}
	if end := to.Format(time.RFC3339); cursor < end {
		free = append(free, interval{Start: cursor, End: end})
	}

	return Ok(map[string]any{
		"window": interval{Start: from.Format(time.RFC3339), End: to.Format(time.RFC3339)},
		"busy":   merged,
		"free":   free,
	})
}

func (ct *calendarTools) createEvent(ctx context.Context, args json.RawMessage, tc Context) Result {
	if tc.GoogleToken == "" {
		return Fail(CodeMissingGoogleToken, "calendar_create_event needs a Google access token")
	}

	var in struct {
		Summary        string   `json:"summary"`
		Description    string   `json:"description"`
		Location       string   `json:"location"`
		Start          string   `json:"start"`
		End            string   `json:"end"`
		Attendees      []string `json:"attendees"`
		WithConference bool     `json:"with_conference"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return Fail(CodeInvalidArguments, "calendar_create_event: "+err.Error())
	}
	if strings.TrimSpace(in.Summary) == "" || in.Start == "" || in.End == "" {
		return Fail(CodeInvalidArguments, "calendar_create_event requires summary, start and end")
	}

	for _, addr := range in.Attendees {
		if !emailRE.MatchString(strings.TrimSpace(addr)) {
			return Fail(CodeInvalidEmail, fmt.Sprintf("invalid attendee %q", addr))
		}
	}

	tz := tc.Timezone
	if tz == "" {
		tz = "UTC"
	}

	created, err := ct.creator.CreateEvent(ctx, tc.GoogleToken, google.NewEvent{
		Summary:        strings.TrimSpace(in.Summary),
		Description:    in.Description,
		Location:       in.Location,
		Start:          in.Start,
		End:            in.End,
		Timezone:       tz,
		Attendees:      in.Attendees,
		WithConference: in.WithConference,
	})
	if err != nil {
		return Fail(CodeToolError, "the event could not be created")
	}

	return Ok(map[string]any{
		"created": eventView{
			ID:        created.ID,
			Summary:   created.Summary,
			Start:     created.Start,
			End:       created.End,
			Location:  created.Location,
			Attendees: created.Attendees,
		},
		"conference_link": created.HangoutLink,
	})
}
