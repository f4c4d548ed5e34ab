package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the durable message log: users, the global channel and its messages.
type Service struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewService builds a store over an already migrated database.
func NewService(db *sql.DB, driver string) *Service {
	return &Service{
		db:     db,
		driver: strings.ToLower(driver),
		now:    time.Now,
	}
}

func (s *Service) isMySQL() bool {
	return s.driver == "mysql"
}

// timestamp returns the current instant at the precision the store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func newMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
