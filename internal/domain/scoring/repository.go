package scoring

import (
	"context"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// Repository определяет порт хранилища оценённых отправок.
type Repository interface {
	// SaveSubmission сохраняет отправку вместе с её оценкой.
	// Повторная отправка того же ID возвращает shared.ErrDuplicateSubmission.
	SaveSubmission(ctx context.Context, workstationID shared.WorkstationID, record *SubmissionRecord, result *Result) error

	// CountAttempts возвращает число отправок по задаче в рамках сессии.
	CountAttempts(ctx context.Context, sessionID shared.SessionID, taskID shared.TaskID) (int, error)

	// FindResults возвращает оценки обучающегося, новые первыми.
	FindResults(ctx context.Context, userID shared.UserID, limit int) ([]Result, error)
}
