// Package scoring содержит движок оценивания LabSim Progression Engine.
// Оценка - это не просто число, а детерминированная функция от действий
// обучающегося: четыре суб-оценки сворачиваются во взвешенный итог и грейд.
// Философия: одинаковые действия всегда дают одинаковый балл.
package scoring

import (
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JUDGMENT (Вердикт обучающегося)
// ══════════════════════════════════════════════════════════════════════════════

// JudgmentResult представляет итоговый вердикт по сценарию.
type JudgmentResult string

const (
	// JudgmentHazardous - материал признан опасным.
	JudgmentHazardous JudgmentResult = "hazardous"
	// JudgmentNonHazardous - материал признан неопасным.
	JudgmentNonHazardous JudgmentResult = "non_hazardous"
	// JudgmentNeedsReview - требуется дополнительная экспертиза.
	JudgmentNeedsReview JudgmentResult = "needs_further_review"
)

// IsValid проверяет корректность вердикта.
func (j JudgmentResult) IsValid() bool {
	switch j {
	case JudgmentHazardous, JudgmentNonHazardous, JudgmentNeedsReview:
		return true
	}
	return false
}

// Judgment представляет полный вердикт обучающегося:
// итоговый результат плюс выбранные характеристики и доказательная база.
type Judgment struct {
	// Result - итоговый вердикт.
	Result JudgmentResult

	// Characteristics - выбранные теги характеристик опасности
	// (например: toxicity, corrosivity, flammability).
	Characteristics []string

	// EvidenceBasis - выбранные теги доказательной базы.
	EvidenceBasis []string

	// Rationale - свободный текст обоснования.
	Rationale string
}

// CorrectAnswer представляет эталонный ответ из определения задачи.
type CorrectAnswer struct {
	// Result - правильный итоговый вердикт.
	Result JudgmentResult

	// Characteristics - полный набор правильных характеристик.
	Characteristics []string
}

// SubmissionRecord представляет отправленный вердикт.
// Создаётся при отправке и после этого неизменяем.
type SubmissionRecord struct {
	// ID - уникальный идентификатор отправки.
	ID string

	// SessionID - сессия, которой принадлежит отправка.
	SessionID shared.SessionID

	// UserID - обучающийся.
	UserID shared.UserID

	// TaskID - задача сценария.
	TaskID shared.TaskID

	// Judgment - вердикт обучающегося.
	Judgment Judgment

	// Attempt - порядковый номер попытки (1-based).
	Attempt int

	// SubmittedAt - время отправки.
	SubmittedAt time.Time
}

// Validate проверяет обязательные поля отправки.
// Возвращает ValidationFieldError с указанием поля - вызывающий может
// исправить данные и отправить повторно.
func (r *SubmissionRecord) Validate() error {
	if r.UserID == "" {
		return &shared.ValidationFieldError{Field: "user_id", Message: "user ID is required"}
	}
	if !r.TaskID.IsValid() {
		return &shared.ValidationFieldError{Field: "task_id", Message: "task ID is required"}
	}
	if !r.Judgment.Result.IsValid() {
		return &shared.ValidationFieldError{Field: "judgment", Rule: "enum", Message: "judgment result must be hazardous, non_hazardous or needs_further_review"}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE INPUT / RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Input содержит всё необходимое для вычисления оценки одной отправки.
type Input struct {
	// Judgment - вердикт обучающегося.
	Judgment Judgment

	// CorrectAnswer - эталонный ответ.
	CorrectAnswer CorrectAnswer

	// SpentBudget - потрачено на закупку доказательств.
	SpentBudget float64

	// TotalBudget - доступный бюджет.
	TotalBudget float64

	// OptimalCost - оптимальная стоимость доказательной базы.
	OptimalCost float64

	// UserPath - фактический путь операций обучающегося.
	UserPath []string

	// OptimalPath - оптимальный путь операций.
	OptimalPath []string

	// ElapsedSeconds - затраченное время.
	ElapsedSeconds float64

	// TimeLimitSeconds - лимит времени (0 = без лимита).
	TimeLimitSeconds float64
}

// Validate проверяет вход на отрицательные значения.
func (in Input) Validate() error {
	if !in.Judgment.Result.IsValid() {
		return shared.ErrMissingJudgment
	}
	if in.SpentBudget < 0 || in.TotalBudget < 0 || in.OptimalCost < 0 {
		return shared.ErrNegativeBudget
	}
	if in.ElapsedSeconds < 0 {
		return shared.ErrNegativeElapsed
	}
	return nil
}

// SubScores содержит четыре независимые суб-оценки (каждая 0-100).
type SubScores struct {
	// Accuracy - точность вердикта и характеристик.
	Accuracy float64 `json:"accuracy"`

	// BudgetEfficiency - эффективность расходования бюджета.
	BudgetEfficiency float64 `json:"budget_efficiency"`

	// PathRationality - рациональность пути операций.
	PathRationality float64 `json:"path_rationality"`

	// Time - скорость выполнения.
	Time float64 `json:"time"`
}

// PathComparison - сводка сравнения пути обучающегося с оптимальным.
type PathComparison struct {
	// Covered - шаги оптимального пути, которые обучающийся выполнил.
	Covered []string `json:"covered"`

	// Missed - шаги оптимального пути, которые пропущены.
	Missed []string `json:"missed"`

	// Extra - лишние шаги, которых нет в оптимальном пути.
	Extra []string `json:"extra"`

	// CoverageRatio - доля покрытия оптимального пути (0-1).
	CoverageRatio float64 `json:"coverage_ratio"`
}

// Result представляет полный результат оценивания. Результат неизменяем
// после вычисления; достижения, выданные по отправке, живут в результате
// саги завершения.
type Result struct {
	// SubmissionID - оценённая отправка.
	SubmissionID string `json:"submission_id"`

	// SubScores - четыре суб-оценки.
	SubScores SubScores `json:"sub_scores"`

	// Total - взвешенный итог, округлённый до целого (0-100).
	// Инвариант: Total = round(clamp(0.4*Accuracy + 0.3*Budget + 0.2*Path + 0.1*Time, 0, 100)).
	Total int `json:"total"`

	// Grade - грейд по порогам 90/70/60.
	Grade Grade `json:"grade"`

	// PathComparison - сводка сравнения путей.
	PathComparison PathComparison `json:"path_comparison"`

	// ScoredAt - время вычисления.
	ScoredAt time.Time `json:"scored_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE (Грейд)
// ══════════════════════════════════════════════════════════════════════════════

// Grade представляет грейд за итоговую оценку.
type Grade string

const (
	// GradeGold - итог >= 90.
	GradeGold Grade = "gold"
	// GradeSilver - итог >= 70.
	GradeSilver Grade = "silver"
	// GradeBronze - итог >= 60.
	GradeBronze Grade = "bronze"
	// GradeTrainee - итог < 60.
	GradeTrainee Grade = "trainee"
)

// Пороги грейдов (строгое ">=").
const (
	goldThreshold   = 90
	silverThreshold = 70
	bronzeThreshold = 60
)

// String возвращает строковое представление грейда.
func (g Grade) String() string {
	return string(g)
}
