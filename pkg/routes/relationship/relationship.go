package relationship

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	relrepo "github.com/trellishq/trellis/internal/repositories/relationship"
	"github.com/trellishq/trellis/pkg/appcontext"
	"github.com/trellishq/trellis/pkg/models"
	"github.com/trellishq/trellis/pkg/relationships"
)

var validate = validator.New()

// Register registers relationship routes
func Register(g *echo.Group) {
	g.POST("", Add)
	g.DELETE("/:id", Delete)
	g.GET("/contact/:contactId", ListByContact)
}

// Add creates a relationship edge and its mirror through the sync engine
func Add(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.AddRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FromContactID == req.ToContactID {
		return httperror.NewHTTPError(http.StatusBadRequest, "a contact cannot relate to itself")
	}

	ctx, engine, err := ectoinject.GetContext[*relationships.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	result, err := engine.AddRelationship(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Delete removes a relationship edge and its mirror
func Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, engine, err := ectoinject.GetContext[*relationships.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	if err := engine.DeleteRelationship(ctx, tenantID, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ListByContact returns the edges originating from a contact
func ListByContact(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*relrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.ListByContact(ctx, tenantID, c.Param("contactId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.RelationshipListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}
