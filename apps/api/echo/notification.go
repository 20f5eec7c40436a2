package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/lamiedu/taarifa/core"
	"github.com/lamiedu/taarifa/core/notification"
)

type notificationApi struct {
	svc      notification.ServiceInterface
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{
		svc:      deps.NotifSvc,
		validate: deps.Validate,
	}

	ng := g.Group("/notifications", jwt)

	ng.GET("", api.list)
	ng.GET("/count", api.count)
	ng.POST("", api.create, publisherMiddleware())
	ng.PATCH("/read-all", api.markAllRead)
	ng.PATCH("/:id/read", api.markRead)
	ng.DELETE("/:id", api.destroy)
}

type (
	SuccessResponse struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data,omitempty"`
	}

	CountData struct {
		Total int `json:"total"`
	}

	MarkAllData struct {
		Count int `json:"count"`
	}
)

// Handlers

func (api *notificationApi) list(ctx echo.Context) error {
	rcpt, err := api.scopedRecipient(ctx)
	if err != nil {
		return err
	}

	notifs, err := api.svc.List(ctx.Request().Context(), rcpt)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Data: notifs})
}

func (api *notificationApi) count(ctx echo.Context) error {
	rcpt, err := api.scopedRecipient(ctx)
	if err != nil {
		return err
	}

	total, err := api.svc.CountUnread(ctx.Request().Context(), rcpt)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Data: CountData{Total: total}})
}

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	notif, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}
	notificationOps.WithLabelValues("created").Inc()

	return ctx.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: notif})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	rcpt, err := getContextRecipient(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	if _, err = api.svc.MarkRead(ctx.Request().Context(), rcpt, id); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	notificationOps.WithLabelValues("read").Inc()

	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	rcpt, err := api.scopedRecipient(ctx)
	if err != nil {
		return err
	}

	count, err := api.svc.MarkAllRead(ctx.Request().Context(), rcpt)
	if err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	notificationOps.WithLabelValues("read_all").Inc()

	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Data: MarkAllData{Count: count}})
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	rcpt, err := getContextRecipient(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	// delete is idempotent: a missing notification still yields success
	if err = api.svc.Delete(ctx.Request().Context(), rcpt, id); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	notificationOps.WithLabelValues("deleted").Inc()

	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// scopedRecipient resolves the recipient a request acts on. The authenticated
// claims are authoritative; explicit role/recipientId query params are only
// accepted when they match them.
func (api *notificationApi) scopedRecipient(ctx echo.Context) (notification.Recipient, error) {
	rcpt, err := getContextRecipient(ctx)
	if err != nil {
		return notification.Recipient{}, err
	}

	if qRole := ctx.QueryParam("role"); qRole != "" && notification.Role(qRole) != rcpt.Role {
		return notification.Recipient{}, core.NewAuthorizationError(errors.New("role does not match the authenticated recipient"))
	}
	if qID := ctx.QueryParam("recipientId"); qID != "" {
		id, err := strconv.Atoi(qID)
		if err != nil || id != rcpt.ID {
			return notification.Recipient{}, core.NewAuthorizationError(errors.New("recipientId does not match the authenticated recipient"))
		}
	}
	return rcpt, nil
}

func idParam(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "must be a positive integer"})
	}
	return id, nil
}
