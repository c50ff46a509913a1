package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

const defaultEventLimit = 500

// RESTSource reads events and books from the api-gateway
type RESTSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTSource creates a source for the gateway at baseURL
func NewRESTSource(baseURL string, httpClient *http.Client) *RESTSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &RESTSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// rawEvent keeps each column raw so nullable wrappers can be unwrapped
type rawEvent struct {
	EventID      json.RawMessage `json:"event_id"`
	SportKey     json.RawMessage `json:"sport_key"`
	HomeTeam     json.RawMessage `json:"home_team"`
	AwayTeam     json.RawMessage `json:"away_team"`
	CommenceTime json.RawMessage `json:"commence_time"`
	EventStatus  json.RawMessage `json:"event_status"`
}

type rawBook struct {
	BookKey     json.RawMessage `json:"book_key"`
	DisplayName json.RawMessage `json:"display_name"`
	BookType    json.RawMessage `json:"book_type"`
	Active      json.RawMessage `json:"active"`
}

// Events fetches events for a sport. Rows without an event_id are skipped.
func (s *RESTSource) Events(ctx context.Context, sport string) ([]models.Event, error) {
	q := url.Values{}
	q.Set("sport", sport)
	q.Set("limit", fmt.Sprint(defaultEventLimit))

	var body struct {
		Events []rawEvent `json:"events"`
	}
	if err := s.get(ctx, "/api/v1/events?"+q.Encode(), &body); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	events := make([]models.Event, 0, len(body.Events))
	for _, raw := range body.Events {
		e := models.Event{
			EventID:      models.Extract(raw.EventID, ""),
			SportKey:     models.Extract(raw.SportKey, sport),
			HomeTeam:     models.Extract(raw.HomeTeam, ""),
			AwayTeam:     models.Extract(raw.AwayTeam, ""),
			CommenceTime: models.Extract(raw.CommenceTime, time.Time{}),
			EventStatus:  NormalizeStatus(models.Extract(raw.EventStatus, "")),
		}
		if e.EventID == "" {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Books fetches the book list. Books missing an active flag count as active.
func (s *RESTSource) Books(ctx context.Context) ([]models.Book, error) {
	var body struct {
		Books []rawBook `json:"books"`
	}
	if err := s.get(ctx, "/api/v1/books", &body); err != nil {
		return nil, fmt.Errorf("fetch books: %w", err)
	}

	books := make([]models.Book, 0, len(body.Books))
	for _, raw := range body.Books {
		b := models.Book{
			BookKey:     models.Extract(raw.BookKey, ""),
			DisplayName: models.Extract(raw.DisplayName, ""),
			BookType:    models.Extract(raw.BookType, models.BookTypeRetail),
			Active:      models.Extract(raw.Active, true),
		}
		if b.BookKey == "" {
			continue
		}
		if b.DisplayName == "" {
			b.DisplayName = b.BookKey
		}
		books = append(books, b)
	}
	return books, nil
}

func (s *RESTSource) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
