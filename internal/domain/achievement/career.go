package achievement

import (
	"math"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP REWARD (Награда за выполнение задачи)
// ══════════════════════════════════════════════════════════════════════════════

// Difficulty - сложность задачи.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Multiplier возвращает множитель сложности.
func (d Difficulty) Multiplier() float64 {
	switch d {
	case DifficultyIntermediate:
		return 1.5
	case DifficultyAdvanced:
		return 2.0
	default:
		return 1.0
	}
}

// XPReward вычисляет награду XP за выполнение задачи.
// Формула: round(baseXP * difficultyMultiplier * score/100 * bonus),
// где bonus = 1.1 при score >= 100, 1.05 при score >= 90, иначе 1.0.
func XPReward(baseXP int, difficulty Difficulty, score int) int {
	bonus := 1.0
	switch {
	case score >= 100:
		bonus = 1.1
	case score >= 90:
		bonus = 1.05
	}
	return int(math.Round(float64(baseXP) * difficulty.Multiplier() * float64(score) / 100 * bonus))
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL TABLE (Таблица уровней 1..15)
// ══════════════════════════════════════════════════════════════════════════════

// MaxLevel - максимальный карьерный уровень.
const MaxLevel = 15

// LevelConfig описывает один уровень: порог суммарного XP для его
// достижения и что он открывает.
type LevelConfig struct {
	// Level - номер уровня (1..15).
	Level int `json:"level"`

	// XPThreshold - суммарный XP, необходимый для достижения уровня.
	XPThreshold int `json:"xp_threshold"`

	// Title - звание уровня.
	Title string `json:"title"`

	// UnlockedFeatures - фичи, открываемые уровнем.
	UnlockedFeatures []string `json:"unlocked_features,omitempty"`

	// UnlockedWorkstations - станции, открываемые уровнем.
	UnlockedWorkstations []string `json:"unlocked_workstations,omitempty"`

	// UnlockedTasks - задачи, открываемые уровнем.
	UnlockedTasks []string `json:"unlocked_tasks,omitempty"`
}

// LevelTable - упорядоченная таблица уровней.
type LevelTable []LevelConfig

// DefaultLevelTable возвращает встроенную таблицу 15 уровней.
func DefaultLevelTable() LevelTable {
	return LevelTable{
		{Level: 1, XPThreshold: 0, Title: "Стажёр", UnlockedFeatures: []string{"basic_tasks"}, UnlockedWorkstations: []string{"intro-lab"}},
		{Level: 2, XPThreshold: 100, Title: "Младший лаборант", UnlockedFeatures: []string{"hints"}},
		{Level: 3, XPThreshold: 400, Title: "Лаборант", UnlockedWorkstations: []string{"acid-bay"}},
		{Level: 4, XPThreshold: 900, Title: "Старший лаборант", UnlockedFeatures: []string{"evidence_market"}},
		{Level: 5, XPThreshold: 1400, Title: "Техник", UnlockedWorkstations: []string{"storage-yard"}},
		{Level: 6, XPThreshold: 2000, Title: "Старший техник", UnlockedFeatures: []string{"competitions"}},
		{Level: 7, XPThreshold: 2700, Title: "Инспектор", UnlockedWorkstations: []string{"incinerator-unit"}},
		{Level: 8, XPThreshold: 3500, Title: "Старший инспектор", UnlockedFeatures: []string{"peer_review"}},
		{Level: 9, XPThreshold: 4400, Title: "Эксперт", UnlockedWorkstations: []string{"waste-water-plant"}},
		{Level: 10, XPThreshold: 5400, Title: "Ведущий эксперт", UnlockedFeatures: []string{"custom_scenarios"}},
		{Level: 11, XPThreshold: 6500, Title: "Аналитик", UnlockedWorkstations: []string{"chem-depot"}},
		{Level: 12, XPThreshold: 7700, Title: "Ведущий аналитик", UnlockedFeatures: []string{"mentoring"}},
		{Level: 13, XPThreshold: 9000, Title: "Руководитель группы", UnlockedWorkstations: []string{"emergency-site"}},
		{Level: 14, XPThreshold: 10400, Title: "Главный специалист", UnlockedFeatures: []string{"authoring"}},
		{Level: 15, XPThreshold: 12000, Title: "Мастер", UnlockedFeatures: []string{"hall_of_fame"}},
	}
}

// Validate проверяет, что таблица монотонна и начинается с уровня 1.
func (t LevelTable) Validate() error {
	if len(t) == 0 || t[0].Level != 1 || t[0].XPThreshold != 0 {
		return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "level table must start at level 1 with threshold 0")
	}
	for i := 1; i < len(t); i++ {
		if t[i].Level != t[i-1].Level+1 || t[i].XPThreshold <= t[i-1].XPThreshold {
			return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "level table must be strictly increasing")
		}
	}
	return nil
}

// ThresholdFor возвращает порог XP для уровня. Для неизвестного уровня
// возвращает -1.
func (t LevelTable) ThresholdFor(level int) int {
	for _, cfg := range t {
		if cfg.Level == level {
			return cfg.XPThreshold
		}
	}
	return -1
}

// LevelFor возвращает уровень для суммарного XP.
func (t LevelTable) LevelFor(totalXP int) int {
	level := 1
	for _, cfg := range t {
		if totalXP >= cfg.XPThreshold {
			level = cfg.Level
		}
	}
	return level
}

// UnlocksUpTo возвращает накопленные разблокировки для всех уровней <= level.
func (t LevelTable) UnlocksUpTo(level int) UnlockSet {
	set := UnlockSet{}
	for _, cfg := range t {
		if cfg.Level > level {
			break
		}
		set.Features = append(set.Features, cfg.UnlockedFeatures...)
		set.Workstations = append(set.Workstations, cfg.UnlockedWorkstations...)
		set.Tasks = append(set.Tasks, cfg.UnlockedTasks...)
	}
	return set
}

// UnlockSet - множество разблокировок (фичи, станции, задачи).
type UnlockSet struct {
	Features     []string `json:"features,omitempty"`
	Workstations []string `json:"workstations,omitempty"`
	Tasks        []string `json:"tasks,omitempty"`
}

// Merge объединяет два множества разблокировок без дубликатов.
func (s UnlockSet) Merge(other UnlockSet) UnlockSet {
	return UnlockSet{
		Features:     mergeUnique(s.Features, other.Features),
		Workstations: mergeUnique(s.Workstations, other.Workstations),
		Tasks:        mergeUnique(s.Tasks, other.Tasks),
	}
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CAREER PROFILE (Карьерный профиль)
// ══════════════════════════════════════════════════════════════════════════════

// CareerProfile представляет карьерный профиль обучающегося.
// TotalXP монотонно не убывает; уровень меняется только XP-грантами.
type CareerProfile struct {
	// UserID - обучающийся.
	UserID shared.UserID `json:"user_id"`

	// Level - текущий уровень (1..15).
	Level int `json:"level"`

	// TotalXP - суммарный XP за всё время.
	TotalXP int `json:"total_xp"`
}

// NewCareerProfile создаёт профиль первого уровня.
func NewCareerProfile(userID shared.UserID) *CareerProfile {
	return &CareerProfile{UserID: userID, Level: 1, TotalXP: 0}
}

// CurrentLevelXP возвращает XP, накопленный внутри текущего уровня.
func (p *CareerProfile) CurrentLevelXP(table LevelTable) int {
	threshold := table.ThresholdFor(p.Level)
	if threshold < 0 {
		return 0
	}
	return p.TotalXP - threshold
}

// XPGrantResult - результат одного XP-гранта.
type XPGrantResult struct {
	// XPGranted - выдано XP.
	XPGranted int `json:"xp_granted"`

	// OldLevel, NewLevel - уровень до и после.
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`

	// CrossedLevels - все уровни, пересечённые этим грантом.
	// Многоуровневые скачки явные, а не усечённые до +1.
	CrossedLevels []int `json:"crossed_levels,omitempty"`

	// Unlocked - объединение разблокировок по всем пересечённым уровням.
	Unlocked UnlockSet `json:"unlocked"`
}

// LeveledUp возвращает true, если грант пересёк хотя бы один уровень.
func (r *XPGrantResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

// GrantXP начисляет XP профилю и выполняет проверку повышения уровня.
// Цикл продолжается, пока TotalXP >= порога следующего уровня, накапливая
// каждый пересечённый уровень в одном гранте. Отрицательный amount
// игнорируется: XP монотонно не убывает.
func (p *CareerProfile) GrantXP(amount int, table LevelTable) XPGrantResult {
	result := XPGrantResult{
		XPGranted: amount,
		OldLevel:  p.Level,
		NewLevel:  p.Level,
	}
	if amount <= 0 {
		result.XPGranted = 0
		return result
	}

	p.TotalXP += amount

	for p.Level < MaxLevel {
		next := table.ThresholdFor(p.Level + 1)
		if next < 0 || p.TotalXP < next {
			break
		}
		p.Level++
		result.CrossedLevels = append(result.CrossedLevels, p.Level)
	}

	result.NewLevel = p.Level
	if result.LeveledUp() {
		for _, level := range result.CrossedLevels {
			for _, cfg := range table {
				if cfg.Level == level {
					result.Unlocked = result.Unlocked.Merge(UnlockSet{
						Features:     cfg.UnlockedFeatures,
						Workstations: cfg.UnlockedWorkstations,
						Tasks:        cfg.UnlockedTasks,
					})
				}
			}
		}
	}
	return result
}
