package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Storage оборачивает подключение к БД типизированными запросами. Мутации,
// которые должны лечь атомарно с пересчётом тендера, идут через InTx.
type Storage struct {
	db *sqlx.DB
	queries
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db, queries: queries{ext: db}}
}

// Tx — тот же набор запросов, привязанный к открытой транзакции.
type Tx struct {
	queries
}

// InTx выполняет fn в serializable-транзакции. Запись по грузополучателю и
// пересчёт тендера разделяют одну транзакцию, чтобы закоммиченная запись не
// встречалась со старыми полями тендера.
func (s *Storage) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{queries{ext: tx}}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// queries хранит все запросы; работает и с пулом, и с транзакцией.
type queries struct {
	ext sqlx.ExtContext
}

// User (учётка оператора, одна из фиксированных ролей)
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

func (q queries) CreateUser(ctx context.Context, u *User) error {
	query := `
        INSERT INTO users (username, email, password_hash, role, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`
	return q.ext.QueryRowxContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.Role, u.IsActive).
		Scan(&u.ID, &u.CreatedAt)
}

func (q queries) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	query := `SELECT * FROM users WHERE username=$1`
	err := sqlx.GetContext(ctx, q.ext, u, query, username)
	return u, err
}

// Tender (контракт закупки)
type Tender struct {
	ID                  int       `db:"id" json:"id"`
	TenderNumber        string    `db:"tender_number" json:"tenderNumber"`
	AuthorityType       string    `db:"authority_type" json:"authorityType"`
	ContractDate        time.Time `db:"contract_date" json:"contractDate"`
	PODate              time.Time `db:"po_date" json:"poDate"`
	LeadTimeToDeliver   int       `db:"lead_time_to_deliver" json:"leadTimeToDeliver"`
	LeadTimeToInstall   int       `db:"lead_time_to_install" json:"leadTimeToInstall"`
	EquipmentName       string    `db:"equipment_name" json:"equipmentName"`
	Status              string    `db:"status" json:"status"`
	AccessoriesPending  bool      `db:"accessories_pending" json:"accessoriesPending"`
	InstallationPending bool      `db:"installation_pending" json:"installationPending"`
	InvoicePending      bool      `db:"invoice_pending" json:"invoicePending"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
}

func (q queries) CreateTender(ctx context.Context, t *Tender) error {
	query := `
        INSERT INTO tenders
            (tender_number, authority_type, contract_date, po_date,
             lead_time_to_deliver, lead_time_to_install, equipment_name,
             status, accessories_pending, installation_pending, invoice_pending)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at`
	return q.ext.QueryRowxContext(ctx, query,
		t.TenderNumber, t.AuthorityType, t.ContractDate, t.PODate,
		t.LeadTimeToDeliver, t.LeadTimeToInstall, t.EquipmentName,
		t.Status, t.AccessoriesPending, t.InstallationPending, t.InvoicePending).
		Scan(&t.ID, &t.CreatedAt)
}

func (q queries) GetTender(ctx context.Context, id int) (*Tender, error) {
	t := &Tender{}
	query := `SELECT * FROM tenders WHERE id=$1`
	err := sqlx.GetContext(ctx, q.ext, t, query, id)
	return t, err
}

// SearchTenders фильтрует по фрагменту номера тендера или названия
// оборудования и, опционально, по производному статусу.
func (q queries) SearchTenders(ctx context.Context, fragment, status string, limit, offset int) ([]Tender, error) {
	var args []interface{}
	var conds []string

	if fragment != "" {
		args = append(args, "%"+fragment+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(tender_number ILIKE $%d OR equipment_name ILIKE $%d)", n, n))
	}
	if status != "" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT * FROM tenders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY tender_number ASC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	tenders := []Tender{}
	if err := sqlx.SelectContext(ctx, q.ext, &tenders, query, args...); err != nil {
		return nil, err
	}
	return tenders, nil
}

// UpdateTenderDerived пишет четыре производных поля. Вызывается только
// агрегатором; из клиентского запроса эти поля не выставляются.
func (q queries) UpdateTenderDerived(ctx context.Context, tenderID int, status string, accessories, installation, invoice bool) error {
	query := `
        UPDATE tenders
        SET status=$2, accessories_pending=$3, installation_pending=$4, invoice_pending=$5
        WHERE id=$1`
	res, err := q.ext.ExecContext(ctx, query, tenderID, status, accessories, installation, invoice)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (q queries) GetDistricts(ctx context.Context) ([]string, error) {
	districts := []string{}
	query := `SELECT DISTINCT district_name FROM consignees ORDER BY district_name ASC`
	err := sqlx.SelectContext(ctx, q.ext, &districts, query)
	return districts, err
}

func (q queries) GetBlocks(ctx context.Context, district string) ([]string, error) {
	blocks := []string{}
	if district != "" {
		query := `SELECT DISTINCT block_name FROM consignees WHERE district_name=$1 ORDER BY block_name ASC`
		err := sqlx.SelectContext(ctx, q.ext, &blocks, query, district)
		return blocks, err
	}
	query := `SELECT DISTINCT block_name FROM consignees ORDER BY block_name ASC`
	err := sqlx.SelectContext(ctx, q.ext, &blocks, query)
	return blocks, err
}
