package productionorder

import (
	"database/sql"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
)

const (
	productionOrdersTable = "production_orders"
)

// ProductionOrderRow represents the database row for a production order
type ProductionOrderRow struct {
	BatchNumber  sql.NullString `db:"batch_number"`
	MaterialDesc sql.NullString `db:"material_desc"`
	MachineName  sql.NullString `db:"machine_name"`
	CreatedAt    sql.NullTime   `db:"created_at"`
}

var productionOrderStruct = database.NewStruct(new(ProductionOrderRow))

// ToProductionOrder converts a database row to a domain model
func ToProductionOrder(row *ProductionOrderRow) *models.ProductionOrder {
	return &models.ProductionOrder{
		BatchNumber:  row.BatchNumber.String,
		MaterialDesc: row.MaterialDesc.String,
		MachineName:  row.MachineName.String,
		CreatedAt:    row.CreatedAt.Time,
	}
}
