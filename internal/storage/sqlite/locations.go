package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/LuminLynx/misty/internal/weather"
	"github.com/LuminLynx/misty/pkg/logger"
)

// LocationsStore persists the favorite and recent location lists. Records
// are replaced wholesale on re-select, never mutated field by field.
type LocationsStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewLocationsStore creates a locations store on the shared database.
func NewLocationsStore(db *sql.DB, log *logger.Logger) *LocationsStore {
	return &LocationsStore{
		db:     db,
		logger: log.Named("locations-store"),
	}
}

// Upsert replaces the stored record for the location and stamps it as the
// most recently accessed.
func (s *LocationsStore) Upsert(loc weather.Location) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
		return fmt.Errorf("coordinates out of range: %f, %f", loc.Lat, loc.Lon)
	}

	id := loc.ID
	if id == "" {
		id = loc.Key()
	}

	_, err := s.db.Exec(
		`INSERT INTO locations (id, name, lat, lon, country, state, is_favorite, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, lat = excluded.lat, lon = excluded.lon,
			country = excluded.country, state = excluded.state,
			last_accessed = excluded.last_accessed`,
		id, loc.Name, loc.Lat, loc.Lon, loc.Country, loc.State,
		boolToInt(loc.IsFavorite), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting location: %w", err)
	}
	return nil
}

// SetFavorite flips the favorite flag for a stored location.
func (s *LocationsStore) SetFavorite(id string, favorite bool) error {
	res, err := s.db.Exec(`UPDATE locations SET is_favorite = ? WHERE id = ?`, boolToInt(favorite), id)
	if err != nil {
		return fmt.Errorf("updating favorite flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("location not found: %s", id)
	}
	return nil
}

// Touch updates the last-accessed timestamp for a stored location.
func (s *LocationsStore) Touch(id string) error {
	_, err := s.db.Exec(`UPDATE locations SET last_accessed = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("touching location: %w", err)
	}
	return nil
}

// List returns stored locations, most recently accessed first.
func (s *LocationsStore) List(favoritesOnly bool) ([]weather.Location, error) {
	query := `SELECT id, name, lat, lon, country, state, is_favorite, last_accessed
		FROM locations`
	if favoritesOnly {
		query += ` WHERE is_favorite = 1`
	}
	query += ` ORDER BY last_accessed DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []weather.Location
	for rows.Next() {
		var loc weather.Location
		var country, state sql.NullString
		var favorite int
		var lastAccessed sql.NullInt64
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Lat, &loc.Lon, &country, &state, &favorite, &lastAccessed); err != nil {
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		loc.Country = country.String
		loc.State = state.String
		loc.IsFavorite = favorite != 0
		loc.LastAccessed = lastAccessed.Int64
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// Get returns a single stored location by id.
func (s *LocationsStore) Get(id string) (weather.Location, bool, error) {
	var loc weather.Location
	var country, state sql.NullString
	var favorite int
	var lastAccessed sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id, name, lat, lon, country, state, is_favorite, last_accessed FROM locations WHERE id = ?`,
		id,
	).Scan(&loc.ID, &loc.Name, &loc.Lat, &loc.Lon, &country, &state, &favorite, &lastAccessed)
	if err == sql.ErrNoRows {
		return weather.Location{}, false, nil
	}
	if err != nil {
		return weather.Location{}, false, fmt.Errorf("reading location: %w", err)
	}
	loc.Country = country.String
	loc.State = state.String
	loc.IsFavorite = favorite != 0
	loc.LastAccessed = lastAccessed.Int64
	return loc, true, nil
}

// Delete removes a stored location.
func (s *LocationsStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
