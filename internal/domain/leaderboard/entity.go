// Package leaderboard содержит доменную модель соревновательного рейтинга
// LabSim Progression Engine. Ранг - это всегда производная величина:
// он пересчитывается полной сортировкой и никогда не записывается отдельно.
package leaderboard

import (
	"sort"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию участника в рейтинге (1-based).
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsPodium возвращает true, если участник в тройке лидеров.
func (r Rank) IsPodium() bool {
	return r >= 1 && r <= 3
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY (Запись рейтинга)
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну запись соревновательного рейтинга.
// Пара (CompetitionID, UserID) уникальна: повторная отправка отклоняется,
// а не сливается с существующей.
type Entry struct {
	// CompetitionID - соревнование.
	CompetitionID shared.CompetitionID `json:"competition_id"`

	// UserID - участник.
	UserID shared.UserID `json:"user_id"`

	// UserName - отображаемое имя участника.
	UserName string `json:"user_name"`

	// Score - итоговая оценка (0-100).
	Score int `json:"score"`

	// TimeSpentSeconds - затраченное время в секундах.
	TimeSpentSeconds int `json:"time_spent_seconds"`

	// OperationPath - путь операций участника (опционально, для разбора).
	OperationPath []string `json:"operation_path,omitempty"`

	// Rank - производная позиция после полной сортировки. Никогда не
	// является источником истины.
	Rank Rank `json:"rank"`

	// SubmittedAt - время отправки.
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate проверяет корректность записи.
func (e *Entry) Validate() error {
	if !e.CompetitionID.IsValid() {
		return shared.ErrInvalidCompetitionID
	}
	if e.UserID == "" {
		return &shared.ValidationFieldError{Field: "user_id", Message: "user ID is required"}
	}
	if e.Score < 0 || e.Score > 100 {
		return shared.ErrInvalidScore
	}
	if e.TimeSpentSeconds < 0 {
		return &shared.ValidationFieldError{Field: "time_spent_seconds", Message: "time spent cannot be negative"}
	}
	return nil
}

// Better сравнивает две записи по ключу сортировки:
// оценка по убыванию, затем время по возрастанию. Полное совпадение
// ключа разрешается по UserID, чтобы порядок не зависел от порядка
// отправок.
func (e *Entry) Better(other *Entry) bool {
	if e.Score != other.Score {
		return e.Score > other.Score
	}
	if e.TimeSpentSeconds != other.TimeSpentSeconds {
		return e.TimeSpentSeconds < other.TimeSpentSeconds
	}
	return e.UserID < other.UserID
}

// ══════════════════════════════════════════════════════════════════════════════
// SORTING / RANKING
// ══════════════════════════════════════════════════════════════════════════════

// SortEntries сортирует записи и проставляет ранги.
// Сортировка стабильная, ключ - (score desc, timeSpent asc); ранг - это
// 1-based позиция после сортировки. Результат - чистая функция от набора
// пар (score, timeSpent): любая перестановка входа даёт тот же порядок.
// Вход не мутируется, возвращается новый слайс.
func SortEntries(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Better(&sorted[j])
	})

	for i := range sorted {
		sorted[i].Rank = Rank(i + 1)
	}

	return sorted
}

// RankOf возвращает ранг участника в отсортированном наборе.
// Возвращает 0, если участник не найден.
func RankOf(sorted []Entry, userID shared.UserID) Rank {
	for _, e := range sorted {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}
