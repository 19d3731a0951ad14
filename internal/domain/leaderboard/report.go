package leaderboard

import (
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT (Отчёт по соревнованию)
// ══════════════════════════════════════════════════════════════════════════════

// HistogramBucket представляет одну корзину гистограммы оценок.
type HistogramBucket struct {
	// Label - подпись корзины ("0-59", "60-69", ...).
	Label string `json:"label"`

	// Min, Max - границы корзины включительно.
	Min int `json:"min"`
	Max int `json:"max"`

	// Count - количество записей в корзине.
	Count int `json:"count"`
}

// Report представляет сводный отчёт по соревнованию.
// Все значения выводятся из отсортированного набора записей.
type Report struct {
	// CompetitionID - соревнование.
	CompetitionID string `json:"competition_id"`

	// Participants - количество участников.
	Participants int `json:"participants"`

	// AverageScore, MinScore, MaxScore - статистика оценок.
	AverageScore float64 `json:"average_score"`
	MinScore     int     `json:"min_score"`
	MaxScore     int     `json:"max_score"`

	// AverageTimeSeconds, MinTimeSeconds, MaxTimeSeconds - статистика времени.
	AverageTimeSeconds float64 `json:"average_time_seconds"`
	MinTimeSeconds     int     `json:"min_time_seconds"`
	MaxTimeSeconds     int     `json:"max_time_seconds"`

	// Histogram - 5 корзин: 0-59, 60-69, 70-79, 80-89, 90-100.
	Histogram []HistogramBucket `json:"histogram"`

	// RankChanges - изменения позиций относительно предыдущего среза.
	// Заполняется только в BuildReportWithPrevious.
	RankChanges []RankChange `json:"rank_changes,omitempty"`

	// Top - первые позиции рейтинга (после сортировки).
	Top []Entry `json:"top"`

	// GeneratedAt - время генерации отчёта.
	GeneratedAt time.Time `json:"generated_at"`
}

// Границы корзин гистограммы.
var histogramBounds = []HistogramBucket{
	{Label: "0-59", Min: 0, Max: 59},
	{Label: "60-69", Min: 60, Max: 69},
	{Label: "70-79", Min: 70, Max: 79},
	{Label: "80-89", Min: 80, Max: 89},
	{Label: "90-100", Min: 90, Max: 100},
}

// topSize - сколько лидеров включать в отчёт.
const topSize = 10

// BuildReport строит отчёт из набора записей.
// Записи сортируются внутри; передавать уже отсортированный набор не нужно.
func BuildReport(competitionID string, entries []Entry) *Report {
	sorted := SortEntries(entries)

	report := &Report{
		CompetitionID: competitionID,
		Participants:  len(sorted),
		Histogram:     buildHistogram(sorted),
		GeneratedAt:   time.Now().UTC(),
	}

	if len(sorted) == 0 {
		return report
	}

	scoreSum, timeSum := 0, 0
	report.MinScore = sorted[0].Score
	report.MaxScore = sorted[0].Score
	report.MinTimeSeconds = sorted[0].TimeSpentSeconds
	report.MaxTimeSeconds = sorted[0].TimeSpentSeconds

	for _, e := range sorted {
		scoreSum += e.Score
		timeSum += e.TimeSpentSeconds

		if e.Score < report.MinScore {
			report.MinScore = e.Score
		}
		if e.Score > report.MaxScore {
			report.MaxScore = e.Score
		}
		if e.TimeSpentSeconds < report.MinTimeSeconds {
			report.MinTimeSeconds = e.TimeSpentSeconds
		}
		if e.TimeSpentSeconds > report.MaxTimeSeconds {
			report.MaxTimeSeconds = e.TimeSpentSeconds
		}
	}

	report.AverageScore = float64(scoreSum) / float64(len(sorted))
	report.AverageTimeSeconds = float64(timeSum) / float64(len(sorted))

	top := topSize
	if top > len(sorted) {
		top = len(sorted)
	}
	report.Top = sorted[:top]

	return report
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK CHANGES (Изменения позиций)
// ══════════════════════════════════════════════════════════════════════════════

// RankChange описывает изменение позиции одного участника между двумя
// срезами рейтинга.
type RankChange struct {
	// UserID - участник.
	UserID shared.UserID `json:"user_id"`

	// PreviousRank - позиция в предыдущем срезе. 0 для нового участника.
	PreviousRank Rank `json:"previous_rank"`

	// CurrentRank - позиция в текущем срезе.
	CurrentRank Rank `json:"current_rank"`

	// Delta - на сколько позиций поднялся участник. Положительное значение -
	// подъём, отрицательное - падение, 0 - без изменений и для новых.
	Delta int `json:"delta"`
}

// IsNew возвращает true, если участника не было в предыдущем срезе.
func (c RankChange) IsNew() bool {
	return c.PreviousRank == 0
}

// DiffRanks сравнивает два среза одного соревнования и возвращает изменения
// позиций в порядке текущего рейтинга. Оба среза сортируются внутри.
func DiffRanks(previous, current []Entry) []RankChange {
	prevRanks := make(map[shared.UserID]Rank, len(previous))
	for _, e := range SortEntries(previous) {
		prevRanks[e.UserID] = e.Rank
	}

	sorted := SortEntries(current)
	changes := make([]RankChange, 0, len(sorted))
	for _, e := range sorted {
		change := RankChange{
			UserID:      e.UserID,
			CurrentRank: e.Rank,
		}
		if prev, ok := prevRanks[e.UserID]; ok {
			change.PreviousRank = prev
			change.Delta = int(prev) - int(e.Rank)
		}
		changes = append(changes, change)
	}

	return changes
}

// BuildReportWithPrevious строит отчёт и дополняет его изменениями позиций
// относительно предыдущего среза того же соревнования.
func BuildReportWithPrevious(competitionID string, entries, previous []Entry) *Report {
	report := BuildReport(competitionID, entries)
	report.RankChanges = DiffRanks(previous, entries)
	return report
}

// buildHistogram раскладывает записи по 5 корзинам оценок.
func buildHistogram(entries []Entry) []HistogramBucket {
	buckets := make([]HistogramBucket, len(histogramBounds))
	copy(buckets, histogramBounds)

	for _, e := range entries {
		for i := range buckets {
			if e.Score >= buckets[i].Min && e.Score <= buckets[i].Max {
				buckets[i].Count++
				break
			}
		}
	}

	return buckets
}
