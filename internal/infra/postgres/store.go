package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/domain"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Store is the Postgres persistence layer for profiles, scenarios,
// responses and ratings.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Profiles

const profileColumns = `id, email, password_hash, role, position_type, current_scenario_index,
	interview_started_at, completed_at, full_name, phone_number, country, referred_by, created_at`

func (s *Store) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id)
	return scanProfile(row)
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email=$1`, email)
	return scanProfile(row)
}

func (s *Store) CreateProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, email, password_hash, role, position_type, current_scenario_index,
			interview_started_at, completed_at, full_name, phone_number, country, referred_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.Email, p.PasswordHash, p.Role, nullString(string(p.PositionType)), p.CurrentScenarioIndex,
		p.InterviewStartedAt, p.CompletedAt, p.FullName, p.PhoneNumber, p.Country, p.ReferredBy, p.CreatedAt)
	if isPgCode(err, pgUniqueViolation) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd app.ProfileUpdate) error {
	set := make([]string, 0, 10)
	args := make([]interface{}, 0, 11)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if upd.PositionType != nil {
		add("position_type", nullString(string(*upd.PositionType)))
	}
	if upd.CurrentScenarioIndex != nil {
		add("current_scenario_index", *upd.CurrentScenarioIndex)
	}
	if upd.InterviewStartedAt != nil {
		add("interview_started_at", *upd.InterviewStartedAt)
	}
	if upd.CompletedAt != nil {
		add("completed_at", *upd.CompletedAt)
	}
	if upd.FullName != nil {
		add("full_name", *upd.FullName)
	}
	if upd.PhoneNumber != nil {
		add("phone_number", *upd.PhoneNumber)
	}
	if upd.Country != nil {
		add("country", *upd.Country)
	}
	if upd.ReferredBy != nil {
		add("referred_by", *upd.ReferredBy)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	query := "UPDATE profiles SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += fmt.Sprintf(" WHERE id=$%d", len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (s *Store) ListApplicants(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+`
		FROM profiles WHERE role=$1 ORDER BY created_at DESC, id`, domain.RoleApplicant)
	if err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var p domain.Profile
	var position *string
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &position, &p.CurrentScenarioIndex,
		&p.InterviewStartedAt, &p.CompletedAt, &p.FullName, &p.PhoneNumber, &p.Country, &p.ReferredBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	if position != nil {
		p.PositionType = domain.PositionType(*position)
	}
	return p, nil
}

// Scenarios

const scenarioColumns = `id, title, description, response_type, display_order, active, created_at`

func (s *Store) ListScenarios(ctx context.Context) ([]domain.Scenario, error) {
	return s.queryScenarios(ctx, `SELECT `+scenarioColumns+` FROM scenarios ORDER BY display_order, id`)
}

// LoadActiveScenarios feeds the scenario caches.
func (s *Store) LoadActiveScenarios(ctx context.Context) ([]domain.Scenario, error) {
	return s.queryScenarios(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE active ORDER BY display_order, id`)
}

func (s *Store) queryScenarios(ctx context.Context, query string) ([]domain.Scenario, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var out []domain.Scenario
	for rows.Next() {
		var sc domain.Scenario
		if err := rows.Scan(&sc.ID, &sc.Title, &sc.Description, &sc.ResponseType,
			&sc.DisplayOrder, &sc.Active, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) GetScenario(ctx context.Context, id int64) (domain.Scenario, error) {
	var sc domain.Scenario
	err := s.pool.QueryRow(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id=$1`, id).
		Scan(&sc.ID, &sc.Title, &sc.Description, &sc.ResponseType, &sc.DisplayOrder, &sc.Active, &sc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("get scenario: %w", err)
	}
	return sc, nil
}

func (s *Store) CreateScenario(ctx context.Context, sc domain.Scenario) (domain.Scenario, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scenarios (title, description, response_type, display_order, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		sc.Title, sc.Description, sc.ResponseType, sc.DisplayOrder, sc.Active, sc.CreatedAt).Scan(&sc.ID)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("create scenario: %w", err)
	}
	return sc, nil
}

func (s *Store) UpdateScenario(ctx context.Context, sc domain.Scenario) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scenarios SET title=$1, description=$2, response_type=$3, display_order=$4, active=$5
		WHERE id=$6`,
		sc.Title, sc.Description, sc.ResponseType, sc.DisplayOrder, sc.Active, sc.ID)
	if err != nil {
		return fmt.Errorf("update scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScenarioNotFound
	}
	return nil
}

func (s *Store) DeleteScenario(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scenarios WHERE id=$1`, id)
	if isPgCode(err, pgForeignKeyViolation) {
		return domain.ErrScenarioInUse
	}
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScenarioNotFound
	}
	return nil
}

// SwapDisplayOrder exchanges the ordering slots of two scenarios inside a
// transaction, parking one at -1 so the swap never collides with itself.
func (s *Store) SwapDisplayOrder(ctx context.Context, aID, bID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("swap display order: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderA, orderB int
	if err := tx.QueryRow(ctx, `SELECT display_order FROM scenarios WHERE id=$1 FOR UPDATE`, aID).Scan(&orderA); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrScenarioNotFound
		}
		return fmt.Errorf("swap display order: %w", err)
	}
	if err := tx.QueryRow(ctx, `SELECT display_order FROM scenarios WHERE id=$1 FOR UPDATE`, bID).Scan(&orderB); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrScenarioNotFound
		}
		return fmt.Errorf("swap display order: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE scenarios SET display_order=-1 WHERE id=$1`, aID); err != nil {
		return fmt.Errorf("swap display order: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE scenarios SET display_order=$1 WHERE id=$2`, orderA, bID); err != nil {
		return fmt.Errorf("swap display order: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE scenarios SET display_order=$1 WHERE id=$2`, orderB, aID); err != nil {
		return fmt.Errorf("swap display order: %w", err)
	}
	return tx.Commit(ctx)
}

// Responses

func (s *Store) CreateRecording(ctx context.Context, r domain.Recording) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recordings (id, user_id, scenario_id, storage_key, file_format, response_time, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.UserID, r.ScenarioID, r.StorageKey, r.FileFormat, r.ResponseTime, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	return nil
}

func (s *Store) CreateTextResponse(ctx context.Context, t domain.TextResponse) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO text_responses (id, user_id, scenario_id, response_text, response_time, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.UserID, t.ScenarioID, t.ResponseText, t.ResponseTime, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create text response: %w", err)
	}
	return nil
}

const recordingColumns = `id, user_id, scenario_id, storage_key, file_format, response_time, created_at`

func (s *Store) ListRecordings(ctx context.Context, userID string) ([]domain.Recording, error) {
	return s.queryRecordings(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
}

func (s *Store) ListRecordingsByScenario(ctx context.Context, scenarioID int64) ([]domain.Recording, error) {
	return s.queryRecordings(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE scenario_id=$1 ORDER BY created_at DESC, id`, scenarioID)
}

func (s *Store) queryRecordings(ctx context.Context, query string, arg interface{}) ([]domain.Recording, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []domain.Recording
	for rows.Next() {
		var r domain.Recording
		if err := rows.Scan(&r.ID, &r.UserID, &r.ScenarioID, &r.StorageKey, &r.FileFormat,
			&r.ResponseTime, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const textResponseColumns = `id, user_id, scenario_id, response_text, response_time, created_at`

func (s *Store) ListTextResponses(ctx context.Context, userID string) ([]domain.TextResponse, error) {
	return s.queryTextResponses(ctx,
		`SELECT `+textResponseColumns+` FROM text_responses WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
}

func (s *Store) ListTextResponsesByScenario(ctx context.Context, scenarioID int64) ([]domain.TextResponse, error) {
	return s.queryTextResponses(ctx,
		`SELECT `+textResponseColumns+` FROM text_responses WHERE scenario_id=$1 ORDER BY created_at DESC, id`, scenarioID)
}

func (s *Store) queryTextResponses(ctx context.Context, query string, arg interface{}) ([]domain.TextResponse, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list text responses: %w", err)
	}
	defer rows.Close()

	var out []domain.TextResponse
	for rows.Next() {
		var t domain.TextResponse
		if err := rows.Scan(&t.ID, &t.UserID, &t.ScenarioID, &t.ResponseText,
			&t.ResponseTime, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan text response: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) AnsweredScenarioIDs(ctx context.Context, userID string) (map[int64]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scenario_id FROM recordings WHERE user_id=$1
		UNION
		SELECT scenario_id FROM text_responses WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("answered scenarios: %w", err)
	}
	defer rows.Close()

	answered := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scenario id: %w", err)
		}
		answered[id] = true
	}
	return answered, rows.Err()
}

// Ratings

const ratingColumns = `id, recording_id, text_response_id, rating, feedback, rated_by, created_at, updated_at`

// UpsertRating writes a rating for one response in a single statement.
// Partial unique indexes on recording_id and text_response_id let
// ON CONFLICT replace the previous rating atomically, so concurrent
// raters can never produce two rows for the same response.
func (s *Store) UpsertRating(ctx context.Context, r domain.ResponseRating) (domain.ResponseRating, error) {
	var conflict string
	if r.RecordingID != "" {
		conflict = `(recording_id) WHERE recording_id IS NOT NULL`
	} else {
		conflict = `(text_response_id) WHERE text_response_id IS NOT NULL`
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO response_ratings (id, recording_id, text_response_id, rating, feedback, rated_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT `+conflict+` DO UPDATE
			SET rating=EXCLUDED.rating, feedback=EXCLUDED.feedback,
			    rated_by=EXCLUDED.rated_by, updated_at=EXCLUDED.updated_at
		RETURNING `+ratingColumns,
		r.ID, nullString(r.RecordingID), nullString(r.TextResponseID),
		r.Rating, r.Feedback, r.RatedBy, r.CreatedAt, r.UpdatedAt)
	saved, err := scanRating(row)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return domain.ResponseRating{}, domain.ErrResponseNotFound
		}
		return domain.ResponseRating{}, fmt.Errorf("upsert rating: %w", err)
	}
	return saved, nil
}

func (s *Store) RatingForRecording(ctx context.Context, recordingID string) (*domain.ResponseRating, error) {
	return s.queryRating(ctx,
		`SELECT `+ratingColumns+` FROM response_ratings WHERE recording_id=$1`, recordingID)
}

func (s *Store) RatingForTextResponse(ctx context.Context, textResponseID string) (*domain.ResponseRating, error) {
	return s.queryRating(ctx,
		`SELECT `+ratingColumns+` FROM response_ratings WHERE text_response_id=$1`, textResponseID)
}

func (s *Store) queryRating(ctx context.Context, query, arg string) (*domain.ResponseRating, error) {
	r, err := scanRating(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return &r, nil
}

func scanRating(row rowScanner) (domain.ResponseRating, error) {
	var r domain.ResponseRating
	var recordingID, textResponseID *string
	err := row.Scan(&r.ID, &recordingID, &textResponseID, &r.Rating, &r.Feedback,
		&r.RatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.ResponseRating{}, err
	}
	if recordingID != nil {
		r.RecordingID = *recordingID
	}
	if textResponseID != nil {
		r.TextResponseID = *textResponseID
	}
	return r, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
