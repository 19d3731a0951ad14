package scoring

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEIGHTS (Веса суб-оценок)
// ══════════════════════════════════════════════════════════════════════════════

// Веса взвешенного итога. Сумма всегда равна 1.0.
const (
	WeightAccuracy = 0.4
	WeightBudget   = 0.3
	WeightPath     = 0.2
	WeightTime     = 0.1
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE (Движок оценивания)
// ══════════════════════════════════════════════════════════════════════════════

// Engine вычисляет оценки. Все методы - чистые функции без состояния:
// один и тот же вход всегда даёт один и тот же результат.
type Engine struct{}

// NewEngine создаёт движок оценивания.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate вычисляет полный результат оценивания для входа.
func (e *Engine) Evaluate(submissionID string, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	sub := SubScores{
		Accuracy:         e.ScoreAccuracy(in.Judgment, in.CorrectAnswer),
		BudgetEfficiency: e.ScoreBudgetEfficiency(in.SpentBudget, in.TotalBudget, in.OptimalCost),
		PathRationality:  e.ScorePathRationality(in.UserPath, in.OptimalPath),
		Time:             e.ScoreTime(in.ElapsedSeconds, in.TimeLimitSeconds),
	}

	total := e.CalculateTotalScore(sub)

	return &Result{
		SubmissionID:   submissionID,
		SubScores:      sub,
		Total:          total,
		Grade:          GradeFor(total),
		PathComparison: e.ComparePaths(in.UserPath, in.OptimalPath),
		ScoredAt:       time.Now().UTC(),
	}, nil
}

// ScoreAccuracy оценивает точность вердикта.
//
// Несовпадение итогового вердикта -> 0.
// Точное совпадение набора характеристик -> 100.
// Частичное совпадение: clamp(50 + 50*matched/|correct| - 10*extra, 0, 100),
// где matched = |judged ∩ correct|, extra = |judged \ correct|.
func (e *Engine) ScoreAccuracy(judged Judgment, correct CorrectAnswer) float64 {
	if judged.Result != correct.Result {
		return 0
	}

	judgedSet := toSet(judged.Characteristics)
	correctSet := toSet(correct.Characteristics)

	matched := 0
	for c := range judgedSet {
		if correctSet[c] {
			matched++
		}
	}
	extra := len(judgedSet) - matched

	if matched == len(correctSet) && extra == 0 {
		return 100
	}

	// Пустой эталонный набор с несовпадающим выбором обучающегося
	// сводится к чистому штрафу за лишние характеристики.
	if len(correctSet) == 0 {
		return clamp(50-10*float64(extra), 0, 100)
	}

	score := 50 + 50*float64(matched)/float64(len(correctSet)) - 10*float64(extra)
	return clamp(score, 0, 100)
}

// ScoreBudgetEfficiency оценивает эффективность расходования бюджета.
//
// spent == 0 -> 50 (базовая оценка "доказательства не собирались").
// spent <= optimal -> 100.
// Иначе: clamp(100 - (spent-optimal)/(total-optimal)*100, 0, 100).
// Вырожденный случай total == optimal: 100 при spent <= optimal, иначе 0.
func (e *Engine) ScoreBudgetEfficiency(spent, total, optimal float64) float64 {
	if spent == 0 {
		return 50
	}
	if spent <= optimal {
		return 100
	}
	if total == optimal {
		return 0
	}
	return clamp(100-(spent-optimal)/(total-optimal)*100, 0, 100)
}

// ScorePathRationality оценивает рациональность пути операций.
//
// Пустой оптимальный путь -> 100. Пустой путь обучающегося -> 0.
// Иначе: clamp(100*|user ∩ optimal|/|optimal| - min(30, 5*|user \ optimal|), 0, 100).
// Свойство: при фиксированном покрытии добавление лишних шагов
// никогда не увеличивает оценку.
func (e *Engine) ScorePathRationality(userPath, optimalPath []string) float64 {
	if len(optimalPath) == 0 {
		return 100
	}
	if len(userPath) == 0 {
		return 0
	}

	userSet := toSet(userPath)
	optimalSet := toSet(optimalPath)

	covered := 0
	for step := range userSet {
		if optimalSet[step] {
			covered++
		}
	}
	unnecessary := len(userSet) - covered

	penalty := math.Min(30, 5*float64(unnecessary))
	score := 100*float64(covered)/float64(len(optimalSet)) - penalty
	return clamp(score, 0, 100)
}

// ScoreTime оценивает скорость выполнения.
//
// Без лимита -> 100. elapsed <= 0.5*limit -> 100.
// elapsed <= limit -> round(100 - (elapsed/limit - 0.5)*40).
// Превышение лимита: clamp(80 - (elapsed-limit)/limit*80, 0, 80).
func (e *Engine) ScoreTime(elapsed, limit float64) float64 {
	if limit <= 0 {
		return 100
	}
	if elapsed <= 0.5*limit {
		return 100
	}
	if elapsed <= limit {
		return math.Round(100 - (elapsed/limit-0.5)*40)
	}
	return clamp(80-(elapsed-limit)/limit*80, 0, 80)
}

// CalculateTotalScore сворачивает суб-оценки во взвешенный итог.
// Инвариант: total = round(clamp(0.4*a + 0.3*b + 0.2*p + 0.1*t, 0, 100)).
func (e *Engine) CalculateTotalScore(sub SubScores) int {
	weighted := WeightAccuracy*sub.Accuracy +
		WeightBudget*sub.BudgetEfficiency +
		WeightPath*sub.PathRationality +
		WeightTime*sub.Time
	return int(math.Round(clamp(weighted, 0, 100)))
}

// ComparePaths строит сводку сравнения пути обучающегося с оптимальным.
// Порядок Covered/Missed следует порядку оптимального пути,
// порядок Extra - порядку пути обучающегося.
func (e *Engine) ComparePaths(userPath, optimalPath []string) PathComparison {
	userSet := toSet(userPath)
	optimalSet := toSet(optimalPath)

	cmp := PathComparison{}
	seen := make(map[string]bool)

	for _, step := range optimalPath {
		if seen[step] {
			continue
		}
		seen[step] = true
		if userSet[step] {
			cmp.Covered = append(cmp.Covered, step)
		} else {
			cmp.Missed = append(cmp.Missed, step)
		}
	}

	seen = make(map[string]bool)
	for _, step := range userPath {
		if seen[step] {
			continue
		}
		seen[step] = true
		if !optimalSet[step] {
			cmp.Extra = append(cmp.Extra, step)
		}
	}

	if len(optimalSet) > 0 {
		cmp.CoverageRatio = float64(len(cmp.Covered)) / float64(len(optimalSet))
	} else {
		cmp.CoverageRatio = 1
	}

	return cmp
}

// GradeFor возвращает грейд для итоговой оценки (пороги строгие ">=").
func GradeFor(total int) Grade {
	switch {
	case total >= goldThreshold:
		return GradeGold
	case total >= silverThreshold:
		return GradeSilver
	case total >= bronzeThreshold:
		return GradeBronze
	default:
		return GradeTrainee
	}
}

// toSet превращает слайс в множество (дубликаты схлопываются).
func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// clamp ограничивает v диапазоном [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
