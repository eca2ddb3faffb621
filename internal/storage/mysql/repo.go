package mysql

import (
	"context"
	"database/sql"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"

	"reviewboost/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// isDuplicateKey reports MySQL error 1062 (unique constraint violation).
func isDuplicateKey(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func (r *Repo) UpsertBusiness(ctx context.Context, name, placeID string) (domain.Business, error) {
	res, err := r.db.ExecContext(ctx, upsertBusinessSQL, name, placeID)
	if err != nil {
		return domain.Business{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Business{}, err
	}
	return r.GetBusiness(ctx, id)
}

func (r *Repo) CreateRequest(ctx context.Context, rr domain.ReviewRequest) (domain.ReviewRequest, error) {
	status := rr.Status
	if status == "" {
		status = domain.StatusPending
	}
	res, err := r.db.ExecContext(ctx, insertRequestSQL,
		rr.BusinessID, rr.CustomerContact, rr.ShortCode, rr.ReviewText, string(status))
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ReviewRequest{}, domain.ErrDuplicateCode
		}
		return domain.ReviewRequest{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	return r.RequestByID(ctx, id)
}

func (r *Repo) UpdateReviewText(ctx context.Context, id int64, text string) error {
	_, err := r.db.ExecContext(ctx, updateReviewTextSQL, text, id)
	return err
}

func (r *Repo) MarkSent(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, markSentSQL, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repo) MarkClicked(ctx context.Context, code string) (bool, error) {
	res, err := r.db.ExecContext(ctx, markClickedSQL, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repo) DeleteRequest(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteRequestSQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) CodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, codeExistsSQL, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanRequest(row scanner) (domain.ReviewRequest, error) {
	var rr domain.ReviewRequest
	var status string
	var sentAt, clickedAt sql.NullTime

	if err := row.Scan(
		&rr.ID,
		&rr.BusinessID,
		&rr.CustomerContact,
		&rr.ShortCode,
		&rr.ReviewText,
		&status,
		&rr.CreatedAt,
		&sentAt,
		&clickedAt,
	); err != nil {
		return domain.ReviewRequest{}, err
	}

	rr.Status = domain.Status(status)
	if sentAt.Valid {
		t := sentAt.Time
		rr.SentAt = &t
	}
	if clickedAt.Valid {
		t := clickedAt.Time
		rr.ClickedAt = &t
	}
	return rr, nil
}

func (r *Repo) RequestByCode(ctx context.Context, code string) (domain.ReviewRequest, error) {
	rr, err := scanRequest(r.db.QueryRowContext(ctx, requestByCodeSQL, code))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	return rr, err
}

func (r *Repo) RequestByID(ctx context.Context, id int64) (domain.ReviewRequest, error) {
	rr, err := scanRequest(r.db.QueryRowContext(ctx, requestByIDSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	return rr, err
}

func (r *Repo) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	var b domain.Business
	err := r.db.QueryRowContext(ctx, getBusinessSQL, id).
		Scan(&b.ID, &b.Name, &b.GooglePlaceID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Business{}, domain.ErrNotFound
	}
	return b, err
}

func (r *Repo) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	rows, err := r.db.QueryContext(ctx, listBusinessesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Business
	for rows.Next() {
		var b domain.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.GooglePlaceID, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) CountRequests(ctx context.Context, businessID int64) (int64, int64, error) {
	var total, clicked int64
	err := r.db.QueryRowContext(ctx, countRequestsSQL, businessID).Scan(&total, &clicked)
	return total, clicked, err
}

func (r *Repo) ListRequests(ctx context.Context, businessID int64, limit int) ([]domain.ReviewRequest, error) {
	rows, err := r.db.QueryContext(ctx, listRequestsSQL, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReviewRequest
	for rows.Next() {
		rr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}
