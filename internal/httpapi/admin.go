package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paz-rewards/pkg/db/pagination"
	"paz-rewards/pkg/errutil"
	"paz-rewards/services/promo"
	"paz-rewards/services/redemption"
	"paz-rewards/services/task"
)

// Admin handlers dispatch on the `action` query parameter. Unknown actions
// fall through to a 400 with the uniform error envelope.

func (h *Handler) adminPromo(c *gin.Context) {
	ctx := c.Request.Context()

	switch c.Query("action") {
	case "list":
		codes, err := h.promos.List(ctx)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"promo_codes": codes})

	case "create":
		var req promo.CreateParams
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body"))
			return
		}
		created, err := h.promos.Create(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, created)

	case "update":
		var req promo.UpdateParams
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body"))
			return
		}
		updated, err := h.promos.Update(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, updated)

	case "toggle":
		toggled, err := h.promos.Toggle(ctx, c.Query("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, toggled)

	case "delete":
		if err := h.promos.Delete(ctx, c.Query("id")); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})

	default:
		_ = c.Error(errutil.BadRequest("unknown action"))
	}
}

func (h *Handler) adminRedemptions(c *gin.Context) {
	ctx := c.Request.Context()

	switch c.Query("action") {
	case "list":
		var page pagination.Pagination
		if err := c.ShouldBindQuery(&page); err != nil {
			_ = c.Error(errutil.BadRequest("invalid pagination parameters"))
			return
		}
		requests, info, err := h.redemptions.ListAll(ctx, redemption.Status(c.Query("status")), page)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": requests, "page_info": info})

	case "update":
		var req redemption.TransitionParams
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body"))
			return
		}
		updated, err := h.redemptions.Transition(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, updated)

	default:
		_ = c.Error(errutil.BadRequest("unknown action"))
	}
}

func (h *Handler) adminAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	switch c.Query("action") {
	case "list":
		rows, err := h.redemptions.ListAvailability(ctx)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"availability": rows})

	case "toggle":
		toggled, err := h.redemptions.ToggleAvailability(ctx, c.Query("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, toggled)

	default:
		_ = c.Error(errutil.BadRequest("unknown action"))
	}
}

func (h *Handler) adminTasks(c *gin.Context) {
	ctx := c.Request.Context()

	switch c.Query("action") {
	case "list":
		tasks, err := h.tasks.List(ctx)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": tasks})

	case "create":
		var req task.CreateParams
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body"))
			return
		}
		created, err := h.tasks.Create(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, created)

	case "update":
		var req task.UpdateParams
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body"))
			return
		}
		updated, err := h.tasks.Update(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, updated)

	case "toggle":
		toggled, err := h.tasks.Toggle(ctx, c.Query("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, toggled)

	case "delete":
		if err := h.tasks.Delete(ctx, c.Query("id")); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})

	default:
		_ = c.Error(errutil.BadRequest("unknown action"))
	}
}
