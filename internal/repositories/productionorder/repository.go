package productionorder

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// ProductionOrderRepository reads the batch master data shifts are opened
// against. Rows are written by the ERP sync, never by this service.
type ProductionOrderRepository interface {
	GetByBatch(ctx context.Context, batchNumber string) (*models.ProductionOrder, error)
}

// Repository implements ProductionOrderRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new production order repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByBatch retrieves a production order by batch number
func (r *Repository) GetByBatch(ctx context.Context, batchNumber string) (*models.ProductionOrder, error) {
	ctx, span := tracing.StartSpan(ctx, "ProductionOrderRepository.GetByBatch")
	defer span.End()

	sb := productionOrderStruct.SelectFrom(productionOrdersTable)
	sb.Where(sb.Equal("batch_number", batchNumber))

	sql, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_number": batchNumber,
	}).Debug("Getting production order by batch")

	var row ProductionOrderRow
	err := database.FromContext(ctx, r.db).GetContext(ctx, &row, sql, args...)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NewNotFoundError("batch '%s' not found", batchNumber)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get production order")
		return nil, errors.NewInternalError("failed to get production order")
	}

	return ToProductionOrder(&row), nil
}
