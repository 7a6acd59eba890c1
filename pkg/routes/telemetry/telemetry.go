package telemetry

import (
	"net/http"

	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/pkg/models"
	telemetryservice "github.com/Ramsey-B/sage/pkg/telemetry"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/utils"
)

// Register registers the telemetry routes
func Register(g *echo.Group) {
	g.POST("/weights", PublishWeight)
	g.GET("/scales/:scale/latest", GetLatestWeight)
}

func PublishWeight(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "telemetry.PublishWeight")
	defer span.End()

	req, err := utils.BindRequest[models.PublishWeightRequest](c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*telemetryservice.Service](ctx)
	if err != nil {
		return err
	}

	snapshot, err := service.Publish(ctx, req)
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Weight published", snapshot)
}

func GetLatestWeight(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "telemetry.GetLatestWeight")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*telemetryservice.Service](ctx)
	if err != nil {
		return err
	}

	snapshot, err := service.GetLatest(ctx, c.Param("scale"))
	if err != nil {
		return err
	}

	return utils.Respond(c, http.StatusOK, "Latest weight", snapshot)
}
