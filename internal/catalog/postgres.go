package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// PostgresSource reads events and books straight from Alexandria
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource opens and pings the Alexandria database
func NewPostgresSource(dsn string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{db: db}, nil
}

// Events returns the sport's events ordered by commence time
func (s *PostgresSource) Events(ctx context.Context, sport string) ([]models.Event, error) {
	query := `
		SELECT event_id, sport_key, home_team, away_team, commence_time, event_status
		FROM events
		WHERE sport_key = $1
		ORDER BY commence_time ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, sport, defaultEventLimit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var status sql.NullString
		if err := rows.Scan(&e.EventID, &e.SportKey, &e.HomeTeam, &e.AwayTeam, &e.CommenceTime, &status); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventStatus = NormalizeStatus(status.String)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// Books returns active books ordered by key
func (s *PostgresSource) Books(ctx context.Context) ([]models.Book, error) {
	query := `
		SELECT book_key, display_name, book_type, active
		FROM books
		WHERE active = true
		ORDER BY book_key
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var b models.Book
		var displayName, bookType sql.NullString
		if err := rows.Scan(&b.BookKey, &displayName, &bookType, &b.Active); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		b.DisplayName = displayName.String
		if b.DisplayName == "" {
			b.DisplayName = b.BookKey
		}
		b.BookType = bookType.String
		if b.BookType == "" {
			b.BookType = models.BookTypeRetail
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	return books, nil
}

// Ping checks database connectivity
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database pool
func (s *PostgresSource) Close() error {
	return s.db.Close()
}
