// Package leaderboard содержит доменную модель соревновательного рейтинга.
package leaderboard

import (
	"context"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// Repository определяет порт хранилища записей рейтинга.
type Repository interface {
	// Insert сохраняет новую запись. Для существующей пары
	// (competition, user) возвращает shared.ErrDuplicateSubmission.
	Insert(ctx context.Context, entry *Entry) error

	// FindByCompetition возвращает все записи соревнования
	// (порядок не гарантируется, ранги проставляет SortEntries).
	FindByCompetition(ctx context.Context, competitionID shared.CompetitionID) ([]Entry, error)

	// Exists проверяет наличие записи для пары (competition, user).
	Exists(ctx context.Context, competitionID shared.CompetitionID, userID shared.UserID) (bool, error)

	// ListCompetitions возвращает идентификаторы всех соревнований,
	// по которым есть хотя бы одна запись.
	ListCompetitions(ctx context.Context) ([]shared.CompetitionID, error)
}

// CacheRepository определяет порт горячего кеша рейтинга.
type CacheRepository interface {
	// ReplaceCompetition атомарно заменяет кешированный набор записей.
	ReplaceCompetition(ctx context.Context, competitionID shared.CompetitionID, entries []Entry) error

	// GetCompetition возвращает кешированный отсортированный набор.
	// Возвращает shared.ErrNotFound при промахе кеша.
	GetCompetition(ctx context.Context, competitionID shared.CompetitionID) ([]Entry, error)

	// InvalidateCompetition сбрасывает кеш соревнования.
	InvalidateCompetition(ctx context.Context, competitionID shared.CompetitionID) error
}
