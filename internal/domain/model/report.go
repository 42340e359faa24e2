// report.go — жалоба на объявление.
package model

import "time"

// ReportStatus — статус обработки жалобы.
type ReportStatus string

const (
	// ReportPending — жалоба ожидает рассмотрения
	ReportPending ReportStatus = "pending"
	// ReportReviewed — жалоба рассмотрена
	ReportReviewed ReportStatus = "reviewed"
	// ReportResolved — жалоба урегулирована
	ReportResolved ReportStatus = "resolved"
	// ReportDismissed — жалоба отклонена
	ReportDismissed ReportStatus = "dismissed"
)

// ValidReportStatus проверяет допустимость статуса жалобы.
func ValidReportStatus(s ReportStatus) bool {
	switch s {
	case ReportPending, ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// Report — жалоба на объявление.
type Report struct {
	// ID — числовой идентификатор жалобы (serial)
	ID int64 `json:"id"`

	// ListingID — объявление, на которое подана жалоба
	ListingID int64 `json:"listing_id"`

	// ReporterName — имя заявителя (опционально)
	ReporterName *string `json:"reporter_name,omitempty"`

	// ReporterEmail — email заявителя (опционально)
	ReporterEmail *string `json:"reporter_email,omitempty"`

	// Reason — причина жалобы
	Reason string `json:"reason"`

	// Description — подробности (опционально)
	Description *string `json:"description,omitempty"`

	// Status — статус обработки
	Status ReportStatus `json:"status"`

	// CreatedAt — дата подачи (UTC)
	CreatedAt time.Time `json:"created_at"`

	// ReviewedAt — дата рассмотрения (опционально)
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	// ReviewedBy — кто рассмотрел (опционально)
	ReviewedBy *string `json:"reviewed_by,omitempty"`

	// ReviewNotes — заметки модератора (опционально)
	ReviewNotes *string `json:"review_notes,omitempty"`
}
