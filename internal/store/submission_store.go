package store

import (
	"time"

	"github.com/vrsandeep/tubeindex/internal/models"
)

// SaveSubmission records a new submission in "pending" state and returns its
// row id.
func (s *Store) SaveSubmission(videoID, url string) (int64, error) {
	res, err := s.db.Exec(`
        INSERT INTO submissions (video_id, url, status, created_at, updated_at)
        VALUES (?, ?, 'pending', ?, ?)
    `, videoID, url, time.Now(), time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateSubmissionOutcome writes the terminal result of a submission.
func (s *Store) UpdateSubmissionOutcome(id int64, outcome *models.Outcome) error {
	if outcome.OK() {
		_, err := s.db.Exec(`
            UPDATE submissions
            SET title = ?, total_chunks = ?, status = 'completed', error = '', updated_at = ?
            WHERE id = ?
        `, outcome.VideoTitle, outcome.TotalChunks, time.Now(), id)
		return err
	}
	_, err := s.db.Exec(`
        UPDATE submissions
        SET status = 'failed', error = ?, updated_at = ?
        WHERE id = ?
    `, outcome.Err.Message, time.Now(), id)
	return err
}

// ListSubmissions returns the submission history, newest first.
func (s *Store) ListSubmissions(limit int) ([]*models.SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
        SELECT id, video_id, url, title, total_chunks, status, error, created_at, updated_at
        FROM submissions
        ORDER BY created_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.SubmissionRecord
	for rows.Next() {
		var rec models.SubmissionRecord
		if err := rows.Scan(&rec.ID, &rec.VideoID, &rec.URL, &rec.Title, &rec.TotalChunks,
			&rec.Status, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
