package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStatusConflict is returned when a letter's status changed between read
// and write.
var ErrStatusConflict = errors.New("letter status changed concurrently")

// ErrDecisionTypeInUse is returned when deleting a decision type that letters
// still reference.
var ErrDecisionTypeInUse = errors.New("decision type is referenced by letters")

const foreignKeyViolation = "23503"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const userColumns = `id, username, full_name, email, password_hash, role, sector, active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Sector,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username)=lower($1)`, username))
	if err != nil {
		return User{}, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, full_name, email, password_hash, role, sector, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Username, user.FullName, user.Email, user.PasswordHash, user.Role, user.Sector, user.Active)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOne(result, sql.ErrNoRows)
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListDecisionTypes(ctx context.Context) ([]DecisionType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, sector, COALESCE(supervisor_id, ''), is_president_decision, created_at
		FROM decision_types
		ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("list decision types: %w", err)
	}
	defer rows.Close()

	items := make([]DecisionType, 0)
	for rows.Next() {
		var item DecisionType
		if err := rows.Scan(&item.ID, &item.Title, &item.Sector, &item.SupervisorID, &item.IsPresidentDecision, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision type: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision types: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDecisionType(ctx context.Context, id string) (DecisionType, error) {
	var item DecisionType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, sector, COALESCE(supervisor_id, ''), is_president_decision, created_at
		FROM decision_types WHERE id=$1
	`, id).Scan(&item.ID, &item.Title, &item.Sector, &item.SupervisorID, &item.IsPresidentDecision, &item.CreatedAt)
	if err != nil {
		return DecisionType{}, fmt.Errorf("get decision type %s: %w", id, err)
	}
	return item, nil
}

func (s *PostgresStore) InsertDecisionType(ctx context.Context, item DecisionType) error {
	var supervisor any
	if item.SupervisorID != "" {
		supervisor = item.SupervisorID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_types (id, title, sector, supervisor_id, is_president_decision)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.Title, item.Sector, supervisor, item.IsPresidentDecision)
	if err != nil {
		return fmt.Errorf("insert decision type: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDecisionType(ctx context.Context, item DecisionType) error {
	var supervisor any
	if item.SupervisorID != "" {
		supervisor = item.SupervisorID
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE decision_types
		SET title=$2, sector=$3, supervisor_id=$4, is_president_decision=$5
		WHERE id=$1
	`, item.ID, item.Title, item.Sector, supervisor, item.IsPresidentDecision)
	if err != nil {
		return fmt.Errorf("update decision type %s: %w", item.ID, err)
	}
	if err := expectOne(result, sql.ErrNoRows); err != nil {
		return fmt.Errorf("update decision type %s: %w", item.ID, err)
	}
	return nil
}

// DeleteDecisionType removes an unused decision type. Types referenced by any
// letter fail with ErrDecisionTypeInUse.
func (s *PostgresStore) DeleteDecisionType(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM decision_types
		WHERE id=$1 AND NOT EXISTS (SELECT 1 FROM letters WHERE decision_type_id=$1)
	`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("delete decision type %s: %w", id, ErrDecisionTypeInUse)
		}
		return fmt.Errorf("delete decision type %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM decision_types WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check decision type %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("decision type %s: %w", id, sql.ErrNoRows)
	}
	return fmt.Errorf("delete decision type %s: %w", id, ErrDecisionTypeInUse)
}

const letterSelect = `
	SELECT l.id, l.title, l.description, l.rationale, l.decision_type_id, dt.title, dt.sector,
		COALESCE(dt.supervisor_id, ''), l.status, l.reason_for_rejection, l.artifact_ref,
		l.author_id, u.full_name, u.email, l.created_at, l.updated_at
	FROM letters l
	JOIN decision_types dt ON dt.id = l.decision_type_id
	JOIN users u ON u.id = l.author_id`

func scanLetter(row interface{ Scan(...any) error }) (Letter, error) {
	var item Letter
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Rationale,
		&item.DecisionTypeID,
		&item.DecisionTypeTitle,
		&item.Sector,
		&item.SupervisorID,
		&item.Status,
		&item.ReasonForRejection,
		&item.ArtifactRef,
		&item.AuthorID,
		&item.AuthorName,
		&item.AuthorEmail,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) GetLetter(ctx context.Context, letterID string) (Letter, error) {
	item, err := scanLetter(s.db.QueryRowContext(ctx, letterSelect+` WHERE l.id=$1`, letterID))
	if err != nil {
		return Letter{}, fmt.Errorf("get letter %s: %w", letterID, err)
	}
	return item, nil
}

func (s *PostgresStore) InsertLetter(ctx context.Context, item Letter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO letters (id, title, description, rationale, decision_type_id, status, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Title, item.Description, item.Rationale, item.DecisionTypeID, item.Status, item.AuthorID)
	if err != nil {
		return fmt.Errorf("insert letter: %w", err)
	}
	return nil
}

var letterSorts = map[string]string{
	"":        "l.created_at DESC",
	"newest":  "l.created_at DESC",
	"oldest":  "l.created_at ASC",
	"updated": "l.updated_at DESC",
	"title":   "l.title ASC",
}

// ListLetters returns one page of letters and the total matching count.
func (s *PostgresStore) ListLetters(ctx context.Context, filter LetterFilter) ([]Letter, int, error) {
	orderBy, ok := letterSorts[filter.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("unknown sort %q", filter.Sort)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if len(filter.Statuses) > 0 {
		add("l.status = ANY($%d)", filter.Statuses)
	}
	if filter.DecisionTypeID != "" {
		add("l.decision_type_id = $%d", filter.DecisionTypeID)
	}
	if filter.AuthorID != "" {
		add("l.author_id = $%d", filter.AuthorID)
	}
	if filter.SupervisorID != "" {
		add("dt.supervisor_id = $%d", filter.SupervisorID)
	}
	if strings.TrimSpace(filter.Text) != "" {
		add("l.fts @@ plainto_tsquery('simple', $%d)", filter.Text)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM letters l JOIN decision_types dt ON dt.id = l.decision_type_id` + whereSQL
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count letters: %w", err)
	}

	dataSQL := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", letterSelect, whereSQL, orderBy, limit, offset)
	rows, err := s.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()

	items := make([]Letter, 0)
	for rows.Next() {
		item, err := scanLetter(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan letter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate letters: %w", err)
	}
	return items, total, nil
}

// UpdateLetterContent overwrites the content fields while the letter is still
// in expectedStatus.
func (s *PostgresStore) UpdateLetterContent(ctx context.Context, letterID, expectedStatus, title, description, rationale string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE letters
		SET title=$3, description=$4, rationale=$5, updated_at=NOW()
		WHERE id=$1 AND status=$2
	`, letterID, expectedStatus, title, description, rationale)
	if err != nil {
		return fmt.Errorf("update letter content: %w", err)
	}
	if err := expectOne(result, ErrStatusConflict); err != nil {
		return s.conflictOrMissing(ctx, letterID, err)
	}
	return nil
}

// SetArtifactRef links an approval artifact. Only approved letters accept one.
func (s *PostgresStore) SetArtifactRef(ctx context.Context, letterID, ref string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE letters SET artifact_ref=$2, updated_at=NOW()
		WHERE id=$1 AND status='approved'
	`, letterID, ref)
	if err != nil {
		return fmt.Errorf("set artifact ref: %w", err)
	}
	if err := expectOne(result, ErrStatusConflict); err != nil {
		return s.conflictOrMissing(ctx, letterID, err)
	}
	return nil
}

// TransitionStatus moves a letter from one status to another and appends the
// transition record in the same transaction. The update only applies while
// the letter is still in entry.FromStatus.
func (s *PostgresStore) TransitionStatus(ctx context.Context, entry Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reason := ""
	if entry.ToStatus == "rejected" {
		reason = entry.Reason
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE letters
		SET status=$3,
			reason_for_rejection=$4,
			artifact_ref=CASE WHEN $3='approved' THEN artifact_ref ELSE '' END,
			updated_at=NOW()
		WHERE id=$1 AND status=$2
	`, entry.LetterID, entry.FromStatus, entry.ToStatus, reason)
	if err != nil {
		return fmt.Errorf("update letter status: %w", err)
	}
	if err := expectOne(result, ErrStatusConflict); err != nil {
		return s.conflictOrMissing(ctx, entry.LetterID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO letter_transitions (letter_id, from_status, to_status, actor_id, actor_role, reason, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.LetterID, entry.FromStatus, entry.ToStatus, entry.ActorID, entry.ActorRole, entry.Reason, entry.Signature); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTransitions(ctx context.Context, letterID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, letter_id, from_status, to_status, actor_id, actor_role, reason, signature, created_at
		FROM letter_transitions
		WHERE letter_id=$1
		ORDER BY created_at ASC, id ASC
	`, letterID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	items := make([]Transition, 0)
	for rows.Next() {
		var item Transition
		if err := rows.Scan(
			&item.ID,
			&item.LetterID,
			&item.FromStatus,
			&item.ToStatus,
			&item.ActorID,
			&item.ActorRole,
			&item.Reason,
			&item.Signature,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func expectOne(result sql.Result, none error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return none
	}
	return nil
}

// conflictOrMissing tells a vanished letter apart from a status mismatch.
func (s *PostgresStore) conflictOrMissing(ctx context.Context, letterID string, err error) error {
	if !errors.Is(err, ErrStatusConflict) {
		return err
	}
	var exists bool
	if lookupErr := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM letters WHERE id=$1)`, letterID).Scan(&exists); lookupErr != nil {
		return fmt.Errorf("check letter %s: %w", letterID, lookupErr)
	}
	if !exists {
		return fmt.Errorf("letter %s: %w", letterID, sql.ErrNoRows)
	}
	return fmt.Errorf("letter %s: %w", letterID, ErrStatusConflict)
}
