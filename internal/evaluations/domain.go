package evaluations

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
)

// Score grades a completed task on a five-point scale.
type Score int

const (
	ScorePoor        Score = 1
	ScoreBelowTarget Score = 2
	ScoreOnTarget    Score = 3
	ScoreAboveTarget Score = 4
	ScoreOutstanding Score = 5
)

// Valid reports whether the score is on the scale.
func (s Score) Valid() bool {
	return s >= ScorePoor && s <= ScoreOutstanding
}

// Evaluation records a score given by the designated evaluator for one
// task. One task gets at most one evaluation.
type Evaluation struct {
	UUID          uuid.UUID
	TaskUUID      uuid.UUID
	TeamUUID      uuid.UUID
	EvaluatorUUID uuid.UUID
	EvaluatedUUID uuid.UUID
	Score         Score
	Comment       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ref returns the permission-check view of the evaluation.
func (e *Evaluation) Ref() rbac.EvaluationRef {
	return rbac.EvaluationRef{
		UUID:          e.UUID,
		TaskUUID:      e.TaskUUID,
		TeamUUID:      e.TeamUUID,
		EvaluatorUUID: e.EvaluatorUUID,
		EvaluatedUUID: e.EvaluatedUUID,
	}
}
