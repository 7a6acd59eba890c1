package session

import (
	"net/http"

	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/services/ledger"
	sessionservice "github.com/Ramsey-B/sage/internal/services/session"
	"github.com/Ramsey-B/sage/pkg/context"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/utils"
)

// Register registers the session routes
func Register(g *echo.Group) {
	g.POST("/start", StartShift)
	g.POST("/end", EndShift)
	g.GET("/active", GetActiveShift)
	g.GET("/current/data", GetCurrentSessionData)
	g.GET("/:id", GetSession)
	g.GET("/:id/data", GetSessionData)
	g.GET("/:id/entries", ListEntries)
}

// RegisterBatch registers the batch status route
func RegisterBatch(g *echo.Group) {
	g.GET("/:batch_number/status", CheckBatchStatus)
}

func StartShift(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.StartShift")
	defer span.End()

	req, err := utils.BindRequest[models.StartShiftRequest](c)
	if err != nil {
		return err
	}
	if req.OperatorInitials == "" {
		req.OperatorInitials = context.GetOperatorInitials(ctx)
	}

	ctx, service, err := ectoinject.GetContext[*sessionservice.Service](ctx)
	if err != nil {
		return err
	}

	session, err := service.StartShift(ctx, req)
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusCreated, "Session started", session)
}

func EndShift(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.EndShift")
	defer span.End()

	req, err := utils.BindRequest[models.EndShiftRequest](c)
	if err != nil {
		return err
	}
	if req.SessionID == "" && req.OperatorID == "" {
		req.OperatorID = context.GetOperatorID(ctx)
	}

	ctx, service, err := ectoinject.GetContext[*sessionservice.Service](ctx)
	if err != nil {
		return err
	}

	session, err := service.EndShift(ctx, req)
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Session ended", session)
}

func GetActiveShift(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.GetActiveShift")
	defer span.End()

	operatorID := c.QueryParam("operator_id")
	if operatorID == "" {
		operatorID = context.GetOperatorID(ctx)
	}

	ctx, service, err := ectoinject.GetContext[*sessionservice.Service](ctx)
	if err != nil {
		return err
	}

	session, err := service.GetActiveShift(ctx, operatorID)
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Active session", session)
}

func GetSession(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.GetSession")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*sessionservice.Service](ctx)
	if err != nil {
		return err
	}

	session, err := service.GetSession(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Session", session)
}

func GetSessionData(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.GetSessionData")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return err
	}

	data, err := service.GetSessionData(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Session data", data)
}

func GetCurrentSessionData(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.GetCurrentSessionData")
	defer span.End()

	operatorID := c.QueryParam("operator_id")
	if operatorID == "" {
		operatorID = context.GetOperatorID(ctx)
	}
	batchNumber := c.QueryParam("batch_number")

	ctx, service, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return err
	}

	data, err := service.GetCurrentSessionData(ctx, operatorID, batchNumber)
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Session data", data)
}

func ListEntries(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.ListEntries")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return err
	}

	entries, err := service.ListEntries(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Session entries", entries)
}

func CheckBatchStatus(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session.CheckBatchStatus")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*sessionservice.Service](ctx)
	if err != nil {
		return err
	}

	status, err := service.CheckBatchStatus(ctx, c.Param("batch_number"))
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Batch status", status)
}
