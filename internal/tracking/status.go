package tracking

import "errors"

// Stage — один из четырёх этапов поставки. Каждый этап подтверждается
// загруженным документом.
type Stage string

const (
	StageLogistics    Stage = "logistics"
	StageChallan      Stage = "challan"
	StageInstallation Stage = "installation"
	StageInvoice      Stage = "invoice"
)

// Статусы груза, в порядке выполнения.
const (
	StatusProcessing          = "Processing"
	StatusDispatched          = "Dispatched"
	StatusInstallationPending = "Installation Pending"
	StatusInstallationDone    = "Installation Done"
	StatusInvoiceDone         = "Invoice Done"
)

// Производные статусы тендера.
const (
	TenderPending            = "Pending"
	TenderPartiallyCompleted = "Partially Completed"
	TenderCompleted          = "Completed"
)

var (
	// ErrNotFound — нет грузополучателя, записи этапа или локатора.
	ErrNotFound = errors.New("not found")
	// ErrValidation — некорректный ввод.
	ErrValidation = errors.New("invalid input")
)

func (s Stage) Valid() bool {
	switch s {
	case StageLogistics, StageChallan, StageInstallation, StageInvoice:
		return true
	}
	return false
}

// StatusLabel — статус груза, выставляемый при загрузке документа этапа.
// Порядок загрузок не проверяется, метка ставится всегда.
func (s Stage) StatusLabel() string {
	switch s {
	case StageLogistics:
		return StatusDispatched
	case StageChallan:
		return StatusInstallationPending
	case StageInstallation:
		return StatusInstallationDone
	case StageInvoice:
		return StatusInvoiceDone
	}
	return StatusProcessing
}

var statusRanks = map[string]int{
	StatusProcessing:          0,
	StatusDispatched:          1,
	StatusInstallationPending: 2,
	StatusInstallationDone:    3,
	StatusInvoiceDone:         4,
}

// statusRank упорядочивает статусы для агрегации. Неизвестные метки
// считаются как Processing.
func statusRank(status string) int {
	return statusRanks[status]
}
