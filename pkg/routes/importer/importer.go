package importer

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trellishq/trellis/pkg/appcontext"
	"github.com/trellishq/trellis/pkg/importer"
	"github.com/trellishq/trellis/pkg/models"
)

var validate = validator.New()

// Register registers import routes
func Register(g *echo.Group) {
	g.POST("/batch", ImportBatch)
}

// ImportBatch runs one batch through the reconciliation pipeline and returns
// the cohort counts. Photo enrichment continues after the response.
func ImportBatch(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.ImportBatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, pipeline, err := ectoinject.GetContext[*importer.Pipeline](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pipeline")
	}

	summary, err := pipeline.ImportBatch(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
