// Package achievement содержит движок достижений и карьерного роста
// LabSim Progression Engine. Условия достижений - это закрытое
// перечисление вариантов, вычисляемое одной функцией диспетчеризации:
// все виды условий перечислимы и исчерпывающе тестируемы.
package achievement

import (
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RARITY (Редкость)
// ══════════════════════════════════════════════════════════════════════════════

// Rarity представляет редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONDITION (Тегированное объединение условий)
// ══════════════════════════════════════════════════════════════════════════════

// ConditionKind - вид условия достижения. Ровно восемь видов.
type ConditionKind string

const (
	// ConditionTaskComplete - выполнена конкретная задача или N задач.
	ConditionTaskComplete ConditionKind = "task_complete"
	// ConditionWorkstationComplete - завершена рабочая станция.
	ConditionWorkstationComplete ConditionKind = "workstation_complete"
	// ConditionStreak - серия активных дней >= N.
	ConditionStreak ConditionKind = "streak"
	// ConditionScore - оценка >= порога.
	ConditionScore ConditionKind = "score"
	// ConditionTime - суммарное время обучения >= N минут.
	ConditionTime ConditionKind = "time"
	// ConditionLevel - достигнут уровень >= N.
	ConditionLevel ConditionKind = "level"
	// ConditionFirstTryPass - N задач подряд сдано с первой попытки.
	ConditionFirstTryPass ConditionKind = "first_try_pass"
	// ConditionSpecial - именованное специальное условие.
	ConditionSpecial ConditionKind = "special"
)

// SpecialCondition - именованные специальные условия.
type SpecialCondition string

const (
	SpecialFirstLogin      SpecialCondition = "first_login"
	SpecialAllWorkstations SpecialCondition = "all_workstations"
	SpecialAllPerfect      SpecialCondition = "all_perfect"
	SpecialAllCertificates SpecialCondition = "all_certificates"
)

// Condition - тегированный вариант условия. Заполняются только поля,
// относящиеся к Kind; остальные игнорируются при вычислении.
type Condition struct {
	// Kind - вид условия (тег варианта).
	Kind ConditionKind `json:"kind"`

	// TaskID - конкретная задача (task_complete).
	TaskID shared.TaskID `json:"task_id,omitempty"`

	// Count - требуемое количество (task_complete по количеству).
	Count int `json:"count,omitempty"`

	// WorkstationID - рабочая станция (workstation_complete).
	WorkstationID shared.WorkstationID `json:"workstation_id,omitempty"`

	// Days - длина серии в днях (streak).
	Days int `json:"days,omitempty"`

	// ScoreThreshold - минимальная оценка (score).
	ScoreThreshold int `json:"score_threshold,omitempty"`

	// Minutes - минимальное суммарное время (time).
	Minutes int `json:"minutes,omitempty"`

	// Level - минимальный уровень (level).
	Level int `json:"level,omitempty"`

	// Consecutive - число сдач с первой попытки подряд (first_try_pass).
	Consecutive int `json:"consecutive,omitempty"`

	// Special - имя специального условия (special).
	Special SpecialCondition `json:"special,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION / GRANT
// ══════════════════════════════════════════════════════════════════════════════

// Definition описывает достижение.
type Definition struct {
	// ID - уникальный идентификатор достижения.
	ID string `json:"id"`

	// Name - отображаемое имя.
	Name string `json:"name"`

	// Description - описание условия для обучающегося.
	Description string `json:"description"`

	// Rarity - редкость.
	Rarity Rarity `json:"rarity"`

	// XPReward - базовая награда XP.
	XPReward int `json:"xp_reward"`

	// Condition - единственное условие разблокировки.
	Condition Condition `json:"condition"`
}

// Grant представляет выданное достижение.
// Пара (UserID, AchievementID) уникальна: повторная выдача - это no-op,
// возвращающий существующий грант.
type Grant struct {
	// ID - идентификатор гранта.
	ID string `json:"id"`

	// UserID - обучающийся.
	UserID shared.UserID `json:"user_id"`

	// AchievementID - достижение.
	AchievementID string `json:"achievement_id"`

	// GrantedAt - время выдачи.
	GrantedAt time.Time `json:"granted_at"`
}

// DefaultDefinitions возвращает встроенный каталог достижений.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID: "first-task", Name: "Первое заключение", Rarity: RarityCommon, XPReward: 50,
			Description: "Выполнена первая задача",
			Condition:   Condition{Kind: ConditionTaskComplete, Count: 1},
		},
		{
			ID: "ten-tasks", Name: "Набил руку", Rarity: RarityCommon, XPReward: 150,
			Description: "Выполнено 10 задач",
			Condition:   Condition{Kind: ConditionTaskComplete, Count: 10},
		},
		{
			ID: "acid-bay-cleared", Name: "Кислотный отсек пройден", Rarity: RarityRare, XPReward: 200,
			Description: "Завершена станция кислотного отсека",
			Condition:   Condition{Kind: ConditionWorkstationComplete, WorkstationID: "acid-bay"},
		},
		{
			ID: "streak-7", Name: "Неделя практики", Rarity: RarityRare, XPReward: 100,
			Description: "7 дней подряд",
			Condition:   Condition{Kind: ConditionStreak, Days: 7},
		},
		{
			ID: "gold-standard", Name: "Золотой стандарт", Rarity: RarityEpic, XPReward: 250,
			Description: "Оценка 90 и выше",
			Condition:   Condition{Kind: ConditionScore, ScoreThreshold: 90},
		},
		{
			ID: "marathon", Name: "Марафонец", Rarity: RarityRare, XPReward: 120,
			Description: "600 минут обучения",
			Condition:   Condition{Kind: ConditionTime, Minutes: 600},
		},
		{
			ID: "level-10", Name: "Старший инспектор", Rarity: RarityEpic, XPReward: 300,
			Description: "Достигнут 10 уровень",
			Condition:   Condition{Kind: ConditionLevel, Level: 10},
		},
		{
			ID: "clean-run-5", Name: "Чистая серия", Rarity: RarityEpic, XPReward: 200,
			Description: "5 задач подряд с первой попытки",
			Condition:   Condition{Kind: ConditionFirstTryPass, Consecutive: 5},
		},
		{
			ID: "welcome", Name: "Добро пожаловать", Rarity: RarityCommon, XPReward: 25,
			Description: "Первый вход в систему",
			Condition:   Condition{Kind: ConditionSpecial, Special: SpecialFirstLogin},
		},
		{
			ID: "all-workstations", Name: "Полный обход", Rarity: RarityLegendary, XPReward: 500,
			Description: "Завершены все рабочие станции",
			Condition:   Condition{Kind: ConditionSpecial, Special: SpecialAllWorkstations},
		},
		{
			ID: "perfectionist", Name: "Перфекционист", Rarity: RarityLegendary, XPReward: 600,
			Description: "Все задачи сданы на 100",
			Condition:   Condition{Kind: ConditionSpecial, Special: SpecialAllPerfect},
		},
		{
			ID: "certified-master", Name: "Мастер-сертификат", Rarity: RarityLegendary, XPReward: 800,
			Description: "Получены все сертификаты",
			Condition:   Condition{Kind: ConditionSpecial, Special: SpecialAllCertificates},
		},
	}
}
