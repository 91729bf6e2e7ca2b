package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventbritePayload(hasMore bool, page int) map[string]interface{} {
	return map[string]interface{}{
		"events": []map[string]interface{}{
			{
				"name":        map[string]string{"text": "Trivia Night"},
				"description": map[string]string{"text": "Weekly pub trivia."},
				"url":         "https://eventbrite.example/e/1",
				"start":       map[string]string{"local": "2026-06-18T19:00:00"},
				"end":         map[string]string{"local": "2026-06-18T21:00:00"},
				"is_free":     true,
				"venue": map[string]interface{}{
					"name": "The Local Taphouse",
					"address": map[string]string{
						"localized_address_display": "45 Moody St, Waltham, MA",
					},
				},
				"organizer": map[string]string{"name": "Taphouse Events"},
			},
		},
		"pagination": map[string]interface{}{
			"has_more_items": hasMore,
			"page_number":    page,
		},
	}
}

func TestEventbriteFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "Waltham, MA", r.URL.Query().Get("location.address"))
		assert.Equal(t, "5mi", r.URL.Query().Get("location.within"))
		assert.Equal(t, "venue,organizer", r.URL.Query().Get("expand"))
		require.NoError(t, json.NewEncoder(w).Encode(eventbritePayload(false, 1)))
	}))
	defer srv.Close()

	s := NewEventbrite(NewClient(5*time.Second, ""), srv.URL, "test-token", "Waltham, MA", 5, 6)

	candidates, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "Trivia Night", c.Title)
	assert.Equal(t, "2026-06-18T19:00:00", c.DateText)
	assert.Equal(t, "2026-06-18T21:00:00", c.EndText)
	assert.Equal(t, "The Local Taphouse, 45 Moody St, Waltham, MA", c.LocationText)
	assert.Equal(t, "Taphouse Events", c.Organizer)
	assert.Equal(t, "Free", c.Cost)
}

func TestEventbriteFetchPaginates(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		require.NoError(t, json.NewEncoder(w).Encode(eventbritePayload(true, pages)))
	}))
	defer srv.Close()

	s := NewEventbrite(NewClient(5*time.Second, ""), srv.URL, "t", "Waltham, MA", 5, 6)

	candidates, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eventbriteMaxPages, pages, "pagination is capped")
	assert.Len(t, candidates, eventbriteMaxPages)
}

func TestEventbriteFetchAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"INVALID_AUTH"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewEventbrite(NewClient(5*time.Second, ""), srv.URL, "bad", "Waltham, MA", 5, 6)

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusUnauthorized, fetchErr.Status)
	assert.Contains(t, fetchErr.Error(), "INVALID_AUTH")
}
