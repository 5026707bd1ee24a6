package handlers

import (
	"context"

	"tendertrack/db"
)

type StorageInterface interface {
	CreateUser(ctx context.Context, u *db.User) error
	GetUserByUsername(ctx context.Context, username string) (*db.User, error)

	CreateTender(ctx context.Context, t *db.Tender) error
	GetTender(ctx context.Context, id int) (*db.Tender, error)
	SearchTenders(ctx context.Context, fragment, status string, limit, offset int) ([]db.Tender, error)
	GetDistricts(ctx context.Context) ([]string, error)
	GetBlocks(ctx context.Context, district string) ([]string, error)

	CreateConsignee(ctx context.Context, c *db.Consignee) error
	GetConsignee(ctx context.Context, id int) (*db.Consignee, error)
	GetConsignees(ctx context.Context, districts []string) ([]db.Consignee, error)
	ConsigneesByTender(ctx context.Context, tenderID int) ([]db.Consignee, error)
	UpdateConsigneeSite(ctx context.Context, c *db.Consignee) error

	GetStageArtifact(ctx context.Context, consigneeID int, stage string) (*db.StageArtifact, error)
	ArtifactsForConsignee(ctx context.Context, consigneeID int) ([]db.StageArtifact, error)
}
