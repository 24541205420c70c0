// Package sqlite persists lap and incident records into one SQLite
// database file per race weekend. The file name is derived from the
// weekend anchor, so every session of a weekend lands in the same
// artifact.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS laps (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_uid   TEXT NOT NULL,
	session_type  TEXT NOT NULL,
	car_index     INTEGER NOT NULL,
	driver        TEXT NOT NULL,
	lap_number    INTEGER NOT NULL,
	tyre_compound TEXT,
	lap_time_ms   INTEGER NOT NULL,
	wear_rl       REAL, wear_rr REAL, wear_fl REAL, wear_fr REAL,
	end_time      REAL,
	safety_car    TEXT,
	tyre_age      INTEGER,
	s1_ms         INTEGER, s2_ms INTEGER, s3_ms INTEGER,
	fuel_mix      TEXT,
	mix_history   TEXT,
	UNIQUE(session_uid, car_index, lap_number)
);
CREATE TABLE IF NOT EXISTS incidents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_uid   TEXT NOT NULL,
	lap_number    INTEGER NOT NULL,
	car_index     INTEGER NOT NULL,
	infringement  TEXT,
	penalty       TEXT,
	time_sec      INTEGER,
	places_gained INTEGER,
	other_car     INTEGER,
	session_time  REAL
);
`

type Sink struct {
	outputDir string
	fixedFile string
	logger    *log.Logger

	db       *sql.DB
	filename string
}

type Option func(s *Sink)

func WithOutputDir(dir string) Option {
	return func(s *Sink) { s.outputDir = dir }
}

// WithFile pins the sink to one existing database file, ignoring the
// anchor-derived naming. Used by the analyze path.
func WithFile(filename string) Option {
	return func(s *Sink) { s.fixedFile = filename }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

func NewSink(opts ...Option) *Sink {
	s := &Sink{
		outputDir: ".",
		logger:    log.Default().Named("sqlite"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Filename returns the artifact path for an anchor, e.g.
// "2026-08-30_monza.db".
func (s *Sink) Filename(anchor model.WeekendAnchor) string {
	if s.fixedFile != "" {
		return s.fixedFile
	}
	track := strings.ToLower(strings.ReplaceAll(anchor.TrackName, " ", "-"))
	return filepath.Join(s.outputDir, fmt.Sprintf("%s_%s.db", anchor.Date, track))
}

// ensureDB opens (and initializes) the database belonging to the
// anchor, closing a previously open one when the anchor changed.
func (s *Sink) ensureDB(anchor model.WeekendAnchor) (*sql.DB, error) {
	filename := s.Filename(anchor)
	if s.db != nil && s.filename == filename {
		return s.db, nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("closing previous database failed", log.ErrorField(err))
		}
		s.db = nil
	}
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", filename)
	}
	if _, err := db.Exec(schema); err != nil {
		//nolint:errcheck // the schema error is the interesting one
		db.Close()
		return nil, errors.Wrapf(err, "initializing database %s", filename)
	}
	s.db = db
	s.filename = filename
	s.logger.Info("database opened", log.String("file", filename))
	return db, nil
}

//nolint:funlen // one insert, many columns
func (s *Sink) SaveLaps(anchor model.WeekendAnchor, laps []model.CompletedLapRecord) error {
	db, err := s.ensureDB(anchor)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO laps (
			session_uid, session_type, car_index, driver, lap_number,
			tyre_compound, lap_time_ms,
			wear_rl, wear_rr, wear_fl, wear_fr,
			end_time, safety_car, tyre_age,
			s1_ms, s2_ms, s3_ms, fuel_mix, mix_history
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		//nolint:errcheck // the prepare error is the interesting one
		tx.Rollback()
		return errors.Wrap(err, "preparing lap insert")
	}
	defer stmt.Close()
	for i := range laps {
		rec := &laps[i]
		if _, err := stmt.Exec(
			fmt.Sprint(rec.SessionUID), rec.SessionType, rec.CarIndex,
			rec.Driver, rec.LapNumber,
			rec.TyreCompound, rec.LapTimeMs,
			rec.WheelWear[0], rec.WheelWear[1], rec.WheelWear[2], rec.WheelWear[3],
			rec.EndTime, rec.SafetyCarTag, rec.TyreAge,
			rec.Sector1Ms, rec.Sector2Ms, rec.Sector3Ms,
			rec.FuelMix, rec.MixHistory,
		); err != nil {
			//nolint:errcheck // the exec error is the interesting one
			tx.Rollback()
			return errors.Wrapf(err, "inserting lap %d of car %d",
				rec.LapNumber, rec.CarIndex)
		}
	}
	return errors.Wrap(tx.Commit(), "committing laps")
}

func (s *Sink) SaveIncidents(
	anchor model.WeekendAnchor, sessionUID uint64, incidents []model.IncidentRecord,
) error {
	db, err := s.ensureDB(anchor)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	for i := range incidents {
		rec := &incidents[i]
		if _, err := tx.Exec(`
			INSERT INTO incidents (
				session_uid, lap_number, car_index, infringement, penalty,
				time_sec, places_gained, other_car, session_time
			) VALUES (?,?,?,?,?,?,?,?,?)`,
			fmt.Sprint(sessionUID), rec.LapNumber, rec.CarIndex,
			rec.Infringement, rec.Penalty,
			rec.TimeSec, rec.PlacesGained, rec.OtherCarIndex, rec.SessionTime,
		); err != nil {
			//nolint:errcheck // the exec error is the interesting one
			tx.Rollback()
			return errors.Wrap(err, "inserting incident")
		}
	}
	return errors.Wrap(tx.Commit(), "committing incidents")
}

// ReadLaps loads all laps of a session back, ordered by car and lap.
// Used by the export path and the round-trip tests.
func (s *Sink) ReadLaps(
	anchor model.WeekendAnchor, sessionUID uint64,
) ([]model.CompletedLapRecord, error) {
	db, err := s.ensureDB(anchor)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`
		SELECT session_type, car_index, driver, lap_number, tyre_compound,
			lap_time_ms, wear_rl, wear_rr, wear_fl, wear_fr, end_time,
			safety_car, tyre_age, s1_ms, s2_ms, s3_ms, fuel_mix, mix_history
		FROM laps WHERE session_uid = ?
		ORDER BY car_index, lap_number`, fmt.Sprint(sessionUID))
	if err != nil {
		return nil, errors.Wrap(err, "querying laps")
	}
	defer rows.Close()

	out := []model.CompletedLapRecord{}
	for rows.Next() {
		rec := model.CompletedLapRecord{SessionUID: sessionUID}
		if err := rows.Scan(
			&rec.SessionType, &rec.CarIndex, &rec.Driver, &rec.LapNumber,
			&rec.TyreCompound, &rec.LapTimeMs,
			&rec.WheelWear[0], &rec.WheelWear[1], &rec.WheelWear[2], &rec.WheelWear[3],
			&rec.EndTime, &rec.SafetyCarTag, &rec.TyreAge,
			&rec.Sector1Ms, &rec.Sector2Ms, &rec.Sector3Ms,
			&rec.FuelMix, &rec.MixHistory,
		); err != nil {
			return nil, errors.Wrap(err, "scanning lap")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterating laps")
}

// ReadSessions lists the distinct session UIDs stored in the database.
func (s *Sink) ReadSessions(anchor model.WeekendAnchor) ([]uint64, error) {
	db, err := s.ensureDB(anchor)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT DISTINCT session_uid FROM laps ORDER BY session_uid`)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	defer rows.Close()

	out := []uint64{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scanning session uid")
		}
		uid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing session uid %q", raw)
		}
		out = append(out, uid)
	}
	return out, errors.Wrap(rows.Err(), "iterating sessions")
}

func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Wrap(err, "closing database")
}
