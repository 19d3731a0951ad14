package achievement

import (
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	"github.com/labsim-hub/labsim-progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE (Сертификат рабочей станции)
// ══════════════════════════════════════════════════════════════════════════════

// Certificate представляет сертификат о прохождении рабочей станции.
// Выдаётся ровно один раз на пару (user, workstation).
type Certificate struct {
	// ID - идентификатор сертификата.
	ID string `json:"id"`

	// UserID - обучающийся.
	UserID shared.UserID `json:"user_id"`

	// WorkstationID - рабочая станция.
	WorkstationID shared.WorkstationID `json:"workstation_id"`

	// IssuedAt - время выдачи.
	IssuedAt time.Time `json:"issued_at"`
}

// IssuedDate возвращает дату выдачи в длинном формате для печати
// на сертификате.
func (c *Certificate) IssuedDate() string {
	return c.IssuedAt.UTC().Format(timeutil.FormatCertificate)
}

// CertificateDue проверяет условие выдачи сертификата:
// completedTasks >= totalTasks > 0. Станция без задач сертификата
// не даёт.
func CertificateDue(completedTasks, totalTasks int) bool {
	return totalTasks > 0 && completedTasks >= totalTasks
}
