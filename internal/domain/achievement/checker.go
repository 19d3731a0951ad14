package achievement

import (
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS FACTS (Факты прогресса для вычисления условий)
// ══════════════════════════════════════════════════════════════════════════════

// Facts - снимок прогресса обучающегося, против которого вычисляются
// условия. Движок достижений не тянет состояние сам: факты передаются
// явно при каждой проверке.
type Facts struct {
	// UserID - обучающийся.
	UserID shared.UserID

	// CompletedTaskIDs - множество выполненных задач.
	CompletedTaskIDs map[shared.TaskID]bool

	// CompletedTaskCount - общее количество выполненных задач.
	CompletedTaskCount int

	// CompletedWorkstations - множество завершённых станций.
	CompletedWorkstations map[shared.WorkstationID]bool

	// StreakDays - текущая серия активных дней.
	StreakDays int

	// BestScore - лучшая итоговая оценка.
	BestScore int

	// TotalMinutes - суммарное время обучения в минутах.
	TotalMinutes int

	// Level - текущий карьерный уровень.
	Level int

	// ConsecutiveFirstTry - задач подряд сдано с первой попытки.
	ConsecutiveFirstTry int

	// FirstLogin - это первый вход.
	FirstLogin bool

	// AllWorkstationsComplete - завершены все станции платформы.
	AllWorkstationsComplete bool

	// AllPerfect - все выполненные задачи сданы на 100.
	AllPerfect bool

	// AllCertificates - получены все сертификаты.
	AllCertificates bool
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECKER (Проверка условий)
// ══════════════════════════════════════════════════════════════════════════════

// Checker вычисляет условия достижений. Без состояния.
type Checker struct {
	definitions []Definition
}

// NewChecker создаёт Checker с каталогом определений.
func NewChecker(definitions []Definition) *Checker {
	return &Checker{definitions: definitions}
}

// Definitions возвращает каталог определений.
func (c *Checker) Definitions() []Definition {
	return c.definitions
}

// Satisfied вычисляет одно условие против фактов.
// Единственная функция диспетчеризации по закрытому перечислению видов.
func (c *Checker) Satisfied(cond Condition, facts Facts) (bool, error) {
	switch cond.Kind {
	case ConditionTaskComplete:
		if cond.TaskID != "" {
			return facts.CompletedTaskIDs[cond.TaskID], nil
		}
		return facts.CompletedTaskCount >= cond.Count, nil

	case ConditionWorkstationComplete:
		return facts.CompletedWorkstations[cond.WorkstationID], nil

	case ConditionStreak:
		return facts.StreakDays >= cond.Days, nil

	case ConditionScore:
		return facts.BestScore >= cond.ScoreThreshold, nil

	case ConditionTime:
		return facts.TotalMinutes >= cond.Minutes, nil

	case ConditionLevel:
		return facts.Level >= cond.Level, nil

	case ConditionFirstTryPass:
		return facts.ConsecutiveFirstTry >= cond.Consecutive, nil

	case ConditionSpecial:
		switch cond.Special {
		case SpecialFirstLogin:
			return facts.FirstLogin, nil
		case SpecialAllWorkstations:
			return facts.AllWorkstationsComplete, nil
		case SpecialAllPerfect:
			return facts.AllPerfect, nil
		case SpecialAllCertificates:
			return facts.AllCertificates, nil
		}
		return false, shared.ErrUnknownCondition

	default:
		return false, shared.ErrUnknownCondition
	}
}

// CheckNew возвращает определения, условия которых выполнены фактами и
// которые ещё не выданы (granted - множество ID уже выданных достижений).
// Идемпотентность: определение, попавшее в granted, никогда не
// возвращается повторно.
func (c *Checker) CheckNew(facts Facts, granted map[string]bool) ([]Definition, error) {
	var newly []Definition
	for _, def := range c.definitions {
		if granted[def.ID] {
			continue
		}
		ok, err := c.Satisfied(def.Condition, facts)
		if err != nil {
			return nil, err
		}
		if ok {
			newly = append(newly, def)
		}
	}
	return newly, nil
}
