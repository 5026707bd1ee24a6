package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tendertrack/db"
	"tendertrack/internal/blob"
)

// TxStore — срез хранилища, нужный трекеру внутри одной транзакции.
// *db.Tx его реализует.
type TxStore interface {
	GetConsigneeForUpdate(ctx context.Context, id int) (*db.Consignee, error)
	UpsertStageArtifact(ctx context.Context, a *db.StageArtifact, appendLocators bool) error
	GetStageArtifact(ctx context.Context, consigneeID int, stage string) (*db.StageArtifact, error)
	RemoveStageLocator(ctx context.Context, consigneeID int, stage, locator string) error
	UpdateConsignmentStatus(ctx context.Context, id int, status string) error
	UpdateConsigneeAccessories(ctx context.Context, id int, state db.AccessoryState) error
	ConsigneesByTender(ctx context.Context, tenderID int) ([]db.Consignee, error)
	UpdateTenderDerived(ctx context.Context, tenderID int, status string, accessories, installation, invoice bool) error
}

type Store interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}

// SQLStore адаптирует db.Storage к Store.
type SQLStore struct {
	*db.Storage
}

func (s SQLStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	return s.Storage.InTx(ctx, func(tx *db.Tx) error { return fn(tx) })
}

// ObjectDeleter — сторона файлового хранилища при удалении локатора.
type ObjectDeleter interface {
	Delete(ctx context.Context, locator string) error
}

// Service ведёт машину статусов по грузополучателям, чеклист аксессуаров
// и агрегацию тендера. Мутация и пересчёт идут в одной транзакции.
type Service struct {
	store Store
	blobs ObjectDeleter
	log   *zap.Logger
}

func NewService(store Store, blobs ObjectDeleter, log *zap.Logger) *Service {
	return &Service{store: store, blobs: blobs, log: log}
}

// ArtifactInput — загрузка, уже помещённая в файловое хранилище.
type ArtifactInput struct {
	EventDate    time.Time
	Locators     []string
	CourierName  string
	DocketNumber string
	CreatedBy    int
}

// RecordStageArtifact записывает документ этапа и переводит грузополучателя
// в статус этого этапа. Статус перезаписывается последним действием: этапы
// можно фиксировать в любом порядке. Логистика допускает запись без
// документов — курьер и накладная фиксируются и без файлов.
func (s *Service) RecordStageArtifact(ctx context.Context, consigneeID int, stage Stage, in ArtifactInput) (*db.StageArtifact, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrValidation, stage)
	}
	if stage != StageLogistics {
		if len(in.Locators) == 0 {
			return nil, fmt.Errorf("%w: a document locator is required", ErrValidation)
		}
		if len(in.Locators) > 1 {
			return nil, fmt.Errorf("%w: stage %s holds a single document", ErrValidation, stage)
		}
	}

	artifact := &db.StageArtifact{
		ConsigneeID: consigneeID,
		Stage:       string(stage),
		EventDate:   in.EventDate,
		Locators:    in.Locators,
		CreatedBy:   in.CreatedBy,
	}
	if artifact.Locators == nil {
		artifact.Locators = []string{}
	}
	if stage == StageLogistics {
		if in.CourierName != "" {
			artifact.CourierName = &in.CourierName
		}
		if in.DocketNumber != "" {
			artifact.DocketNumber = &in.DocketNumber
		}
	}

	err := s.store.InTx(ctx, func(tx TxStore) error {
		consignee, err := tx.GetConsigneeForUpdate(ctx, consigneeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: consignee %d", ErrNotFound, consigneeID)
			}
			return fmt.Errorf("load consignee %d: %w", consigneeID, err)
		}
		if err := tx.UpsertStageArtifact(ctx, artifact, stage == StageLogistics); err != nil {
			return fmt.Errorf("record %s artifact: %w", stage, err)
		}
		if err := tx.UpdateConsignmentStatus(ctx, consigneeID, stage.StatusLabel()); err != nil {
			return fmt.Errorf("update consignment status: %w", err)
		}
		return s.recomputeTender(ctx, tx, consignee.TenderID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stage artifact recorded",
		zap.Int("consignee", consigneeID),
		zap.String("stage", string(stage)),
		zap.String("status", stage.StatusLabel()))
	return artifact, nil
}

// RemoveStageLocator убирает локатор из записи этапа и удаляет объект из
// хранилища. Статус груза не откатывается: он отражает последнее
// зафиксированное действие, а не максимум по оставшимся документам.
// Если объекта уже нет, метаданные всё равно очищаются.
func (s *Service) RemoveStageLocator(ctx context.Context, consigneeID int, stage Stage, locator string) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrValidation, stage)
	}
	if locator == "" {
		return fmt.Errorf("%w: locator is required", ErrValidation)
	}

	return s.store.InTx(ctx, func(tx TxStore) error {
		consignee, err := tx.GetConsigneeForUpdate(ctx, consigneeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: consignee %d", ErrNotFound, consigneeID)
			}
			return fmt.Errorf("load consignee %d: %w", consigneeID, err)
		}

		artifact, err := tx.GetStageArtifact(ctx, consigneeID, string(stage))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: no %s record for consignee %d", ErrNotFound, stage, consigneeID)
			}
			return fmt.Errorf("load %s artifact: %w", stage, err)
		}
		if !containsLocator(artifact.Locators, locator) {
			return fmt.Errorf("%w: locator not recorded for stage %s", ErrNotFound, stage)
		}

		if err := s.blobs.Delete(ctx, locator); err != nil {
			if !errors.Is(err, blob.ErrObjectMissing) {
				return fmt.Errorf("delete stored object: %w", err)
			}
			s.log.Warn("stored object already gone, clearing metadata anyway",
				zap.String("locator", locator))
		}

		if err := tx.RemoveStageLocator(ctx, consigneeID, string(stage), locator); err != nil {
			return fmt.Errorf("remove %s locator: %w", stage, err)
		}
		return s.recomputeTender(ctx, tx, consignee.TenderID)
	})
}

// ResolveAccessory отмечает один аксессуар как доставленный. Позиция не из
// списка — no-op, так что вызов идемпотентен.
func (s *Service) ResolveAccessory(ctx context.Context, consigneeID int, item string) (db.AccessoryState, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return db.AccessoryState{}, fmt.Errorf("%w: accessory name is required", ErrValidation)
	}

	var state db.AccessoryState
	err := s.store.InTx(ctx, func(tx TxStore) error {
		consignee, err := tx.GetConsigneeForUpdate(ctx, consigneeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: consignee %d", ErrNotFound, consigneeID)
			}
			return fmt.Errorf("load consignee %d: %w", consigneeID, err)
		}

		remaining := make([]string, 0, len(consignee.AccessoriesPending.Items))
		for _, have := range consignee.AccessoriesPending.Items {
			if have != item {
				remaining = append(remaining, have)
			}
		}
		state = db.AccessoryState{
			Status: len(remaining) > 0,
			Count:  len(remaining),
			Items:  remaining,
		}

		if err := tx.UpdateConsigneeAccessories(ctx, consigneeID, state); err != nil {
			return fmt.Errorf("update accessories: %w", err)
		}
		return s.recomputeTender(ctx, tx, consignee.TenderID)
	})
	if err != nil {
		return db.AccessoryState{}, err
	}
	return state, nil
}

// recomputeTender пересчитывает производный статус тендера и флаги по
// свежей выборке его грузополучателей. Любая ошибка откатывает всю
// транзакцию вместе с исходной мутацией.
func (s *Service) recomputeTender(ctx context.Context, tx TxStore, tenderID int) error {
	consignees, err := tx.ConsigneesByTender(ctx, tenderID)
	if err != nil {
		return fmt.Errorf("aggregate tender %d: %w", tenderID, err)
	}

	var accessories, installation, invoice, anyProgress bool
	for _, c := range consignees {
		rank := statusRank(c.ConsignmentStatus)
		if rank < statusRank(StatusInstallationDone) {
			installation = true
		}
		if rank < statusRank(StatusInvoiceDone) {
			invoice = true
		}
		if rank > statusRank(StatusProcessing) {
			anyProgress = true
		}
		if c.AccessoriesPending.Status {
			accessories = true
		}
	}

	status := TenderPartiallyCompleted
	switch {
	case len(consignees) == 0:
		// пусто: ничего не завершено и ничего не ожидается
		status = TenderPending
	case !invoice && !accessories:
		status = TenderCompleted
	case !anyProgress:
		status = TenderPending
	}

	if err := tx.UpdateTenderDerived(ctx, tenderID, status, accessories, installation, invoice); err != nil {
		return fmt.Errorf("aggregate tender %d: %w", tenderID, err)
	}
	return nil
}

func containsLocator(locators []string, locator string) bool {
	for _, l := range locators {
		if l == locator {
			return true
		}
	}
	return false
}
