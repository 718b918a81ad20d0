package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Event is the normalized view of one calendar event.
type Event struct {
	ID          string
	Summary     string
	Location    string
	Start       string // RFC3339 datetime or date for all-day events
	End         string
	AllDay      bool
	Attendees   []string
	HangoutLink string
}

// NewEvent describes an event to create on the primary calendar.
type NewEvent struct {
	Summary        string
	Description    string
	Location       string
	Start          string // RFC3339, "YYYY-MM-DDTHH:MM" accepted and normalized
	End            string
	Timezone       string
	Attendees      []string
	WithConference bool
}

// ListEventsResult carries one page of events plus the next incremental
// sync position.
type ListEventsResult struct {
	Events    []*Event
	SyncToken string
}

// ListEvents lists events on the primary calendar. When syncToken is set the
// list is incremental; a stale token surfaces as ErrSyncTokenRejected (the
// API answers 410 Gone) so the caller can rebuild from a bounded window.
func (c *Client) ListEvents(ctx context.Context, token, syncToken string, from, to time.Time, max int) (*ListEventsResult, error) {
	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(max))
	if syncToken != "" {
		params.Set("syncToken", syncToken)
	} else {
		params.Set("timeMin", from.UTC().Format(time.RFC3339))
		params.Set("timeMax", to.UTC().Format(time.RFC3339))
		params.Set("singleEvents", "true")
		params.Set("orderBy", "startTime")
	}

	res := &ListEventsResult{}
	pageToken := ""
	for {
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var raw struct {
			Items []struct {
				ID          string `json:"id"`
				Status      string `json:"status"`
				Summary     string `json:"summary"`
				Location    string `json:"location"`
				HangoutLink string `json:"hangoutLink"`
				Start       struct {
					DateTime string `json:"dateTime"`
					Date     string `json:"date"`
				} `json:"start"`
				End struct {
					DateTime string `json:"dateTime"`
					Date     string `json:"date"`
				} `json:"end"`
				Attendees []struct {
					Email string `json:"email"`
				} `json:"attendees"`
			} `json:"items"`
			NextPageToken string `json:"nextPageToken"`
			NextSyncToken string `json:"nextSyncToken"`
		}
		err := c.getJSON(ctx, token, c.calendarBase+"/calendars/primary/events", params, &raw)
		if err != nil {
			if statusOf(err) == http.StatusGone {
				return nil, fmt.Errorf("google.Client.ListEvents: %w", ErrSyncTokenRejected)
			}
			return nil, fmt.Errorf("google.Client.ListEvents: %w", err)
		}

		for _, item := range raw.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev := &Event{
				ID:          item.ID,
				Summary:     item.Summary,
				Location:    item.Location,
				HangoutLink: item.HangoutLink,
			}
			if item.Start.DateTime != "" {
				ev.Start = item.Start.DateTime
				ev.End = item.End.DateTime
			} else {
				ev.Start = item.Start.Date
				ev.End = item.End.Date
				ev.AllDay = true
			}
			for _, a := range item.Attendees {
				if a.Email != "" {
					ev.Attendees = append(ev.Attendees, a.Email)
				}
			}
			res.Events = append(res.Events, ev)
			if len(res.Events) >= max {
				break
			}
		}

		if raw.NextSyncToken != "" {
			res.SyncToken = raw.NextSyncToken
		}
		if raw.NextPageToken == "" || len(res.Events) >= max {
			break
		}
		pageToken = raw.NextPageToken
	}

	return res, nil
}

// CreateEvent creates an event on the primary calendar and returns the
// normalized created event.
func (c *Client) CreateEvent(ctx context.Context, token string, ev NewEvent) (*Event, error) {
	start, err := normalizeDateTime(ev.Start)
	if err != nil {
		return nil, fmt.Errorf("google.Client.CreateEvent: start: %w", err)
	}
	end, err := normalizeDateTime(ev.End)
	if err != nil {
		return nil, fmt.Errorf("google.Client.CreateEvent: end: %w", err)
	}

	type eventTime struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone,omitempty"`
	}
	body := map[string]any{
		"summary": ev.Summary,
		"start":   eventTime{DateTime: start, TimeZone: ev.Timezone},
		"end":     eventTime{DateTime: end, TimeZone: ev.Timezone},
	}
	if ev.Description != "" {
		body["description"] = ev.Description
	}
	if ev.Location != "" {
		body["location"] = ev.Location
	}
	if len(ev.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(ev.Attendees))
		for _, email := range ev.Attendees {
			attendees = append(attendees, map[string]string{"email": email})
		}
		body["attendees"] = attendees
	}
	if ev.WithConference {
		body["conferenceData"] = map[string]any{
			"createRequest": map[string]any{
				"requestId": fmt.Sprintf("voicegate-%d", time.Now().UnixNano()),
				"conferenceSolutionKey": map[string]string{
					"type": "hangoutsMeet",
				},
			},
		}
	}

	endpoint := c.calendarBase + "/calendars/primary/events"
	if ev.WithConference {
		endpoint += "?conferenceDataVersion=1"
	}

	var raw struct {
		ID          string `json:"id"`
		Summary     string `json:"summary"`
		Location    string `json:"location"`
		HangoutLink string `json:"hangoutLink"`
		Start       struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
	}
	if err := c.postJSON(ctx, token, endpoint, body, &raw); err != nil {
		return nil, fmt.Errorf("google.Client.CreateEvent: %w", err)
	}

	created := &Event{
		ID:          raw.ID,
		Summary:     raw.Summary,
		Location:    raw.Location,
		HangoutLink: raw.HangoutLink,
		Start:       raw.Start.DateTime,
		End:         raw.End.DateTime,
		Attendees:   ev.Attendees,
	}
	return created, nil
}

var bareMinuteRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`)

// normalizeDateTime accepts RFC3339 or the minute-precision form
// "YYYY-MM-DDTHH:MM" and returns a value the calendar API accepts.
func normalizeDateTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty datetime")
	}
	if bareMinuteRE.MatchString(s) {
		s += ":00"
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		// No offset is fine when the request carries an explicit timezone.
		if _, err2 := time.Parse("2006-01-02T15:04:05", s); err2 != nil {
			return "", fmt.Errorf("malformed datetime %q", s)
		}
	}
	return s, nil
}
