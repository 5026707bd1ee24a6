package db

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// AccessoryState — открытый чеклист аксессуаров по объекту.
// Инвариант: Status == (Count > 0) и Count == len(Items).
type AccessoryState struct {
	Status bool     `json:"status"`
	Count  int      `json:"count"`
	Items  []string `json:"items"`
}

func (a AccessoryState) Value() (driver.Value, error) {
	if a.Items == nil {
		a.Items = []string{}
	}
	return json.Marshal(a)
}

func (a *AccessoryState) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = AccessoryState{Items: []string{}}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into AccessoryState", src)
	}
}

// Consignee (объект-получатель в рамках тендера)
type Consignee struct {
	ID                 int            `db:"id" json:"id"`
	TenderID           int            `db:"tender_id" json:"tenderId"`
	SrNo               string         `db:"sr_no" json:"srNo"`
	DistrictName       string         `db:"district_name" json:"districtName"`
	BlockName          string         `db:"block_name" json:"blockName"`
	FacilityName       string         `db:"facility_name" json:"facilityName"`
	ConsignmentStatus  string         `db:"consignment_status" json:"consignmentStatus"`
	AccessoriesPending AccessoryState `db:"accessories_pending" json:"accessoriesPending"`
	SerialNumber       *string        `db:"serial_number" json:"serialNumber,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
}

func (q queries) CreateConsignee(ctx context.Context, c *Consignee) error {
	query := `
        INSERT INTO consignees
            (tender_id, sr_no, district_name, block_name, facility_name,
             consignment_status, accessories_pending, serial_number)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`
	return q.ext.QueryRowxContext(ctx, query,
		c.TenderID, c.SrNo, c.DistrictName, c.BlockName, c.FacilityName,
		c.ConsignmentStatus, c.AccessoriesPending, c.SerialNumber).
		Scan(&c.ID, &c.CreatedAt)
}

func (q queries) GetConsignee(ctx context.Context, id int) (*Consignee, error) {
	c := &Consignee{}
	query := `SELECT * FROM consignees WHERE id=$1`
	err := sqlx.GetContext(ctx, q.ext, c, query, id)
	return c, err
}

// GetConsigneeForUpdate блокирует строку до конца транзакции.
func (q queries) GetConsigneeForUpdate(ctx context.Context, id int) (*Consignee, error) {
	c := &Consignee{}
	query := `SELECT * FROM consignees WHERE id=$1 FOR UPDATE`
	err := sqlx.GetContext(ctx, q.ext, c, query, id)
	return c, err
}

func (q queries) GetConsignees(ctx context.Context, districts []string) ([]Consignee, error) {
	query := `SELECT * FROM consignees`
	var args []interface{}

	if len(districts) > 0 {
		placeholders := make([]string, len(districts))
		for i, d := range districts {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, d)
		}
		query += fmt.Sprintf(" WHERE district_name IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY sr_no ASC"

	consignees := []Consignee{}
	err := sqlx.SelectContext(ctx, q.ext, &consignees, query, args...)
	return consignees, err
}

func (q queries) ConsigneesByTender(ctx context.Context, tenderID int) ([]Consignee, error) {
	consignees := []Consignee{}
	query := `SELECT * FROM consignees WHERE tender_id=$1 ORDER BY sr_no ASC`
	err := sqlx.SelectContext(ctx, q.ext, &consignees, query, tenderID)
	return consignees, err
}

// UpdateConsigneeSite меняет только описательные поля объекта; статус и
// чеклист аксессуаров пишутся отдельно.
func (q queries) UpdateConsigneeSite(ctx context.Context, c *Consignee) error {
	query := `
        UPDATE consignees
        SET sr_no=$1, district_name=$2, block_name=$3, facility_name=$4, serial_number=$5
        WHERE id=$6`
	_, err := q.ext.ExecContext(ctx, query,
		c.SrNo, c.DistrictName, c.BlockName, c.FacilityName, c.SerialNumber, c.ID)
	return err
}

func (q queries) UpdateConsignmentStatus(ctx context.Context, id int, status string) error {
	query := `UPDATE consignees SET consignment_status=$1 WHERE id=$2`
	_, err := q.ext.ExecContext(ctx, query, status, id)
	return err
}

func (q queries) UpdateConsigneeAccessories(ctx context.Context, id int, state AccessoryState) error {
	query := `UPDATE consignees SET accessories_pending=$1 WHERE id=$2`
	_, err := q.ext.ExecContext(ctx, query, state, id)
	return err
}

// StageArtifact (запись документа-подтверждения по этапу поставки)
type StageArtifact struct {
	ID           int            `db:"id" json:"id"`
	ConsigneeID  int            `db:"consignee_id" json:"consigneeId"`
	Stage        string         `db:"stage" json:"stage"`
	EventDate    time.Time      `db:"event_date" json:"date"`
	Locators     pq.StringArray `db:"locators" json:"locators"`
	CourierName  *string        `db:"courier_name" json:"courierName,omitempty"`
	DocketNumber *string        `db:"docket_number" json:"docketNumber,omitempty"`
	CreatedBy    int            `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// UpsertStageArtifact пишет запись этапа. Логистика добавляет локаторы к
// существующему набору; остальные этапы заменяют единственный локатор.
func (q queries) UpsertStageArtifact(ctx context.Context, a *StageArtifact, appendLocators bool) error {
	locatorExpr := "EXCLUDED.locators"
	if appendLocators {
		locatorExpr = "stage_artifacts.locators || EXCLUDED.locators"
	}
	query := fmt.Sprintf(`
        INSERT INTO stage_artifacts
            (consignee_id, stage, event_date, locators, courier_name, docket_number, created_by)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (consignee_id, stage) DO UPDATE SET
            event_date = EXCLUDED.event_date,
            locators = %s,
            courier_name = EXCLUDED.courier_name,
            docket_number = EXCLUDED.docket_number,
            created_by = EXCLUDED.created_by
        RETURNING id, locators, created_at`, locatorExpr)
	return q.ext.QueryRowxContext(ctx, query,
		a.ConsigneeID, a.Stage, a.EventDate, a.Locators, a.CourierName, a.DocketNumber, a.CreatedBy).
		Scan(&a.ID, &a.Locators, &a.CreatedAt)
}

func (q queries) GetStageArtifact(ctx context.Context, consigneeID int, stage string) (*StageArtifact, error) {
	a := &StageArtifact{}
	query := `SELECT * FROM stage_artifacts WHERE consignee_id=$1 AND stage=$2`
	err := sqlx.GetContext(ctx, q.ext, a, query, consigneeID, stage)
	return a, err
}

func (q queries) ArtifactsForConsignee(ctx context.Context, consigneeID int) ([]StageArtifact, error) {
	artifacts := []StageArtifact{}
	query := `SELECT * FROM stage_artifacts WHERE consignee_id=$1 ORDER BY stage ASC`
	err := sqlx.SelectContext(ctx, q.ext, &artifacts, query, consigneeID)
	return artifacts, err
}

// RemoveStageLocator убирает один локатор из записи этапа. Пустой набор
// локаторов означает, что этап больше не подтверждён.
func (q queries) RemoveStageLocator(ctx context.Context, consigneeID int, stage, locator string) error {
	query := `
        UPDATE stage_artifacts
        SET locators = array_remove(locators, $3)
        WHERE consignee_id=$1 AND stage=$2`
	_, err := q.ext.ExecContext(ctx, query, consigneeID, stage, locator)
	return err
}
