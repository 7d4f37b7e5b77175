package contact

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	contactrepo "github.com/trellishq/trellis/internal/repositories/contact"
	contacttagrepo "github.com/trellishq/trellis/internal/repositories/contacttag"
	"github.com/trellishq/trellis/pkg/appcontext"
	"github.com/trellishq/trellis/pkg/events"
	"github.com/trellishq/trellis/pkg/models"
)

var validate = validator.New()

// Register registers contact routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.GET("/:id/tags", ListTags)
	g.POST("/:id/tags/:tagId", AttachTag)
	g.DELETE("/:id/tags/:tagId", DetachTag)
}

// List returns the tenant's contacts
func List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*contactrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.ContactListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a contact
func Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.CreateContactRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*contactrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	contact, err := repo.Create(ctx, tenantID, req)
	if err != nil {
		return err
	}

	// Fire-and-forget; the sink logs its own failures.
	if ctx, sink, err := ectoinject.GetContext[events.ContactSink](ctx); err == nil {
		_ = sink.EmitContactCreated(ctx, contact)
	}

	return c.JSON(http.StatusCreated, models.ContactResponse{Contact: *contact})
}

// Get returns a contact by id
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*contactrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	contact, err := repo.GetByID(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	if contact == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	return c.JSON(http.StatusOK, models.ContactResponse{Contact: *contact})
}

// Update applies a partial update to a contact
func Update(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.UpdateContactRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*contactrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	contact, err := repo.Update(ctx, tenantID, c.Param("id"), req)
	if err != nil {
		return err
	}
	if contact == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	if ctx, sink, err := ectoinject.GetContext[events.ContactSink](ctx); err == nil {
		_ = sink.EmitContactUpdated(ctx, contact)
	}

	return c.JSON(http.StatusOK, models.ContactResponse{Contact: *contact})
}

// Delete soft deletes a contact
func Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*contactrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	contactID := c.Param("id")
	if err := repo.Delete(ctx, tenantID, contactID); err != nil {
		return err
	}

	if ctx, sink, err := ectoinject.GetContext[events.ContactSink](ctx); err == nil {
		_ = sink.EmitContactDeleted(ctx, tenantID, contactID)
	}

	return c.NoContent(http.StatusNoContent)
}

// ListTags returns the tags attached to a contact
func ListTags(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, joins, err := ectoinject.GetContext[*contacttagrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := joins.ListByContact(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.TagListResponse{Items: items, TotalCount: len(items)})
}

// AttachTag links an existing tag to a contact
func AttachTag(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*contactrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	contact, err := repo.GetByID(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	if contact == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	ctx, joins, err := ectoinject.GetContext[*contacttagrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if err := joins.Attach(ctx, tenantID, contact.ID, c.Param("tagId")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// DetachTag removes a tag from a contact
func DetachTag(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, joins, err := ectoinject.GetContext[*contacttagrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if err := joins.Detach(ctx, tenantID, c.Param("id"), c.Param("tagId")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
