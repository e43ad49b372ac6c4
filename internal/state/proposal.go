package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ShayCichocki/forge/pkg/models"
)

const proposalColumns = `
	p.id, p.status, p.requirements, p.title, p.description, p.problem_understanding,
	p.solution_proposal, p.scope, p.technologies_suggested, p.estimated_value,
	p.estimated_time, p.terms_conditions, p.needs_review, p.review_reason,
	p.submitted_at, p.updated_at, p.decided_at, COALESCE(pr.id, '')`

const proposalFrom = `FROM proposals p LEFT JOIN projects pr ON pr.proposal_id = p.id`

// CreateProposal inserts a new proposal.
func (db *DB) CreateProposal(p *models.Proposal) error {
	reqs, err := json.Marshal(p.Requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO proposals (
			id, status, requirements, title, description, problem_understanding,
			solution_proposal, scope, technologies_suggested, estimated_value,
			estimated_time, terms_conditions, needs_review, review_reason,
			submitted_at, updated_at, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, string(p.Status), string(reqs), p.Title, p.Description, p.ProblemUnderstanding,
		p.SolutionProposal, p.Scope, p.TechnologiesSuggested, p.EstimatedValue,
		p.EstimatedTime, p.TermsConditions, boolToInt(p.NeedsReview), p.ReviewReason,
		formatTime(p.SubmittedAt), formatTime(p.UpdatedAt), nullableTime(p.DecidedAt))
	if err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal by ID.
func (db *DB) GetProposal(id string) (*models.Proposal, error) {
	row := db.QueryRow(`SELECT `+proposalColumns+` `+proposalFrom+` WHERE p.id = ?`, id)

	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// UpdateProposal replaces every mutable column of a proposal.
func (db *DB) UpdateProposal(p *models.Proposal) error {
	res, err := db.Exec(`
		UPDATE proposals SET
			status = ?, title = ?, description = ?, problem_understanding = ?,
			solution_proposal = ?, scope = ?, technologies_suggested = ?,
			estimated_value = ?, estimated_time = ?, terms_conditions = ?,
			needs_review = ?, review_reason = ?, updated_at = ?, decided_at = ?
		WHERE id = ?
	`, string(p.Status), p.Title, p.Description, p.ProblemUnderstanding,
		p.SolutionProposal, p.Scope, p.TechnologiesSuggested,
		p.EstimatedValue, p.EstimatedTime, p.TermsConditions,
		boolToInt(p.NeedsReview), p.ReviewReason, formatTime(p.UpdatedAt), nullableTime(p.DecidedAt),
		p.ID)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	return rowsAffected(res, "proposal", p.ID)
}

// ListProposals returns proposals, newest first, optionally filtered by status.
func (db *DB) ListProposals(status *models.ProposalStatus) ([]models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` ` + proposalFrom
	var args []any
	if status != nil {
		query += ` WHERE p.status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY p.submitted_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// CascadeResult reports what a cascading proposal delete removed.
type CascadeResult struct {
	ProposalID    string
	ProjectID     string
	Code          int64
	Reports       int64
	Documentation int64
	Events        int64
}

// DeleteProposalCascade removes a proposal together with its project, the
// project's artifacts and every ledger event about either subject.
// It returns ErrNotFound when the proposal does not exist.
func (db *DB) DeleteProposalCascade(id string) (*CascadeResult, error) {
	result := &CascadeResult{ProposalID: id}

	err := db.Transaction(func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM proposals WHERE id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("check proposal: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("proposal %s: %w", id, ErrNotFound)
		}

		var projectID string
		err := tx.QueryRow(`SELECT id FROM projects WHERE proposal_id = ?`, id).Scan(&projectID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find project: %w", err)
		}

		if projectID != "" {
			result.ProjectID = projectID
			children := []struct {
				table string
				n     *int64
			}{
				{"generated_code", &result.Code},
				{"reports", &result.Reports},
				{"documentation", &result.Documentation},
			}
			for _, c := range children {
				n, err := execCount(tx, `DELETE FROM `+c.table+` WHERE project_id = ?`, projectID)
				if err != nil {
					return fmt.Errorf("delete %s: %w", c.table, err)
				}
				*c.n = n
			}
			n, err := execCount(tx, `DELETE FROM events WHERE subject_id = ?`, projectID)
			if err != nil {
				return fmt.Errorf("delete project events: %w", err)
			}
			result.Events += n
			if _, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, projectID); err != nil {
				return fmt.Errorf("delete project: %w", err)
			}
		}

		n, err := execCount(tx, `DELETE FROM events WHERE subject_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete proposal events: %w", err)
		}
		result.Events += n

		if _, err := tx.Exec(`DELETE FROM proposals WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete proposal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func execCount(tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var p models.Proposal
	var reqs string
	var needsReview int
	var reviewReason, decidedAt sql.NullString
	var submittedAt, updatedAt string

	err := row.Scan(&p.ID, &p.Status, &reqs, &p.Title, &p.Description, &p.ProblemUnderstanding,
		&p.SolutionProposal, &p.Scope, &p.TechnologiesSuggested, &p.EstimatedValue,
		&p.EstimatedTime, &p.TermsConditions, &needsReview, &reviewReason,
		&submittedAt, &updatedAt, &decidedAt, &p.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(reqs), &p.Requirements); err != nil {
		return nil, fmt.Errorf("unmarshal requirements: %w", err)
	}
	p.NeedsReview = needsReview != 0
	p.ReviewReason = reviewReason.String
	p.SubmittedAt, _ = parseTime(submittedAt)
	p.UpdatedAt, _ = parseTime(updatedAt)
	p.DecidedAt = parseNullableTime(decidedAt)
	return &p, nil
}
