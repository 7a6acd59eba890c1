package entry

import (
	"net/http"

	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/services/ledger"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/utils"
)

// Register registers the box entry routes
func Register(g *echo.Group) {
	g.POST("", Create)
	g.PATCH("/:id", Update)
	g.DELETE("/:id", Delete)
}

// EntryResponse carries the entry together with the session totals the
// mutation produced, so terminals can refresh their running totals without a
// second round trip.
type EntryResponse struct {
	Entry  *models.BoxEntry     `json:"entry,omitempty"`
	Totals models.SessionTotals `json:"totals"`
}

func Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entry.Create")
	defer span.End()

	req, err := utils.BindRequest[models.AddEntryRequest](c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return err
	}

	created, session, err := service.AddEntry(ctx, req)
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusCreated, "Entry recorded", EntryResponse{
		Entry:  created,
		Totals: session.Totals,
	})
}

func Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entry.Update")
	defer span.End()

	req, err := utils.BindRequest[models.UpdateEntryRequest](c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return err
	}

	updated, session, err := service.UpdateEntry(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Entry updated", EntryResponse{
		Entry:  updated,
		Totals: session.Totals,
	})
}

func Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entry.Delete")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return err
	}

	session, err := service.DeleteEntry(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Entry deleted", EntryResponse{
		Totals: session.Totals,
	})
}
