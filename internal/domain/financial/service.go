package financial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// ParseDay parses a closing day. An empty value means the day of now.
func ParseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	day, err := time.ParseInLocation(DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return day, nil
}

// Service builds daily closings from the backend's financial records.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "financial").Logger()}
}

func (s *Service) Closing(ctx context.Context, day time.Time) (*DailyClosing, error) {
	records, err := s.repo.ListByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list financial records of %s: %w", day.Format(DateLayout), err)
	}
	return BuildClosing(day, records), nil
}

// ExportClosing writes the XLSX closing of day to w.
func (s *Service) ExportClosing(ctx context.Context, day time.Time, w io.Writer) (*DailyClosing, error) {
	c, err := s.Closing(ctx, day)
	if err != nil {
		return nil, err
	}
	if err := WriteXLSX(w, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveClosing writes the XLSX closing of day into dir.
func (s *Service) SaveClosing(ctx context.Context, day time.Time, dir string) (string, error) {
	c, err := s.Closing(ctx, day)
	if err != nil {
		return "", err
	}
	path, err := SaveXLSX(dir, c)
	if err != nil {
		return "", err
	}
	s.logger.Info().
		Str("date", c.Date).
		Str("path", path).
		Int("records", c.Count).
		Str("total", c.Total.StringFixed(2)).
		Msg("daily closing saved")
	return path, nil
}
