package mysql

// LAST_INSERT_ID(id) makes ExecContext report the existing row's id on the
// duplicate-key path, so one statement both dedupes and resolves the id.
const upsertBusinessSQL = `
INSERT INTO businesses (name, google_place_id)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE
  id   = LAST_INSERT_ID(id),
  name = VALUES(name)
`

const insertRequestSQL = `
INSERT INTO review_requests
  (business_id, customer_contact, short_code, review_text, status)
VALUES
  (?, ?, ?, ?, ?)
`

const updateReviewTextSQL = `
UPDATE review_requests SET review_text = ? WHERE id = ?
`

// Status transitions are single conditional UPDATEs: the WHERE guard keeps
// each promotion atomic, the first writer wins, repeats are no-ops, and no
// statement can ever move status backwards.
const markSentSQL = `
UPDATE review_requests
SET status = 'sent', sent_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = 'pending'
`

const markClickedSQL = `
UPDATE review_requests
SET status = 'clicked', clicked_at = CURRENT_TIMESTAMP
WHERE short_code = ? AND status = 'sent'
`

const deleteRequestSQL = `
DELETE FROM review_requests WHERE id = ?
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const codeExistsSQL = `
SELECT 1 FROM review_requests WHERE short_code = ? LIMIT 1
`

const requestColumns = `
  id, business_id, customer_contact, short_code, review_text, status,
  created_at, sent_at, clicked_at
`

const requestByCodeSQL = `SELECT` + requestColumns + `FROM review_requests WHERE short_code = ?`

const requestByIDSQL = `SELECT` + requestColumns + `FROM review_requests WHERE id = ?`

const getBusinessSQL = `
SELECT id, name, google_place_id, created_at FROM businesses WHERE id = ?
`

const listBusinessesSQL = `
SELECT id, name, google_place_id, created_at FROM businesses ORDER BY name
`

const countRequestsSQL = `
SELECT COUNT(*), COUNT(IF(status = 'clicked', 1, NULL))
FROM review_requests
WHERE business_id = ?
`

const listRequestsSQL = `SELECT` + requestColumns + `
FROM review_requests
WHERE business_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`
