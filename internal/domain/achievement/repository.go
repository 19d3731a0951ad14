package achievement

import (
	"context"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// GrantRepository определяет порт хранилища грантов достижений.
type GrantRepository interface {
	// SaveGrant сохраняет грант идемпотентно: для уже существующей пары
	// (user, achievement) возвращает существующий грант без ошибки.
	SaveGrant(ctx context.Context, grant *Grant) (*Grant, error)

	// FindGrants возвращает все гранты обучающегося.
	FindGrants(ctx context.Context, userID shared.UserID) ([]Grant, error)
}

// CertificateRepository определяет порт хранилища сертификатов.
type CertificateRepository interface {
	// SaveCertificate сохраняет сертификат идемпотентно для пары
	// (user, workstation).
	SaveCertificate(ctx context.Context, cert *Certificate) (*Certificate, error)

	// FindCertificates возвращает все сертификаты обучающегося.
	FindCertificates(ctx context.Context, userID shared.UserID) ([]Certificate, error)
}

// ProfileRepository определяет порт хранилища карьерных профилей.
type ProfileRepository interface {
	// FindProfile возвращает профиль или shared.ErrNotFound.
	FindProfile(ctx context.Context, userID shared.UserID) (*CareerProfile, error)

	// SaveProfile сохраняет профиль (upsert).
	SaveProfile(ctx context.Context, profile *CareerProfile) error
}
