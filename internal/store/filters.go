package store

import (
	"time"

	"github.com/go-tollgate/tollgate/internal/models"

	"gorm.io/gorm"
)

// TokenFilter contains filter criteria for token reporting queries.
// Zero values mean "no constraint".
type TokenFilter struct {
	ClientID string `json:"client_id,omitempty"`
	// Only tokens created in the last N days.
	Days int `json:"days,omitempty"`
	// When true, only count tokens that have been revoked.
	Revoked bool `json:"revoked,omitempty"`
}

// DayCount is one day's bucket in a historical series.
type DayCount struct {
	Day     string `json:"day"`
	Granted int64  `json:"granted"`
}

func (s *Store) tokenFilterQuery(f TokenFilter) *gorm.DB {
	q := s.db.Model(&models.AccessToken{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Days > 0 {
		since := time.Now().AddDate(0, 0, -f.Days)
		q = q.Where("created_at >= ?", since)
	}
	if f.Revoked {
		q = q.Where("revoked IS NOT NULL")
	}
	return q
}

// CountAccessTokens counts tokens matching the filter.
func (s *Store) CountAccessTokens(f TokenFilter) (int64, error) {
	var count int64
	err := s.tokenFilterQuery(f).Count(&count).Error
	return count, err
}

// HistoricalAccessTokens buckets token creation by day for the filter's
// range (default 60 days), oldest bucket first. Days with no tokens are
// absent from the series.
func (s *Store) HistoricalAccessTokens(f TokenFilter) ([]DayCount, error) {
	if f.Days == 0 {
		f.Days = 60
	}
	var series []DayCount
	err := s.tokenFilterQuery(f).
		Select("date(created_at) AS day, count(*) AS granted").
		Group("date(created_at)").
		Order("day").
		Scan(&series).Error
	if series == nil {
		series = []DayCount{}
	}
	return series, err
}
