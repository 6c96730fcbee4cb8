package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"paz-rewards/pkg/config"
	"paz-rewards/pkg/errutil"
	"paz-rewards/pkg/health"
	"paz-rewards/pkg/middleware"
	"paz-rewards/services/account"
	"paz-rewards/services/ledger"
	"paz-rewards/services/promo"
	"paz-rewards/services/redemption"
	"paz-rewards/services/task"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

type Handler struct {
	accounts    *account.Service
	ledger      *ledger.Service
	promos      *promo.Service
	redemptions *redemption.Service
	tasks       *task.Service
	health      health.Service
}

type HandlerParams struct {
	fx.In
	Accounts    *account.Service
	Ledger      *ledger.Service
	Promos      *promo.Service
	Redemptions *redemption.Service
	Tasks       *task.Service
	Health      health.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		accounts:    p.Accounts,
		ledger:      p.Ledger,
		promos:      p.Promos,
		redemptions: p.Redemptions,
		tasks:       p.Tasks,
		health:      p.Health,
	}
}

func Register(engine *gin.Engine, h *Handler, cfg *config.Config) {
	engine.Use(middleware.Error())

	engine.GET("/healthz", h.health.Liveness)
	engine.GET("/readyz", h.health.Readiness)

	api := engine.Group("/api")
	{
		api.POST("/register", h.register)
		api.GET("/profile/:id", h.getProfile)
		api.PATCH("/profile/:id", h.updateProfile)
		api.GET("/profile/:id/transactions", h.listTransactions)
		api.GET("/profile/:id/reconcile", h.checkBalance)
		api.POST("/profile/:id/reconcile", h.repairBalance)

		api.POST("/promo/redeem", h.redeemPromo)

		api.GET("/tasks", h.listTasks)
		api.POST("/tasks/complete", h.completeTask)
		api.GET("/quiz/allowance/:id", h.quizAllowance)

		api.GET("/leaderboard", h.leaderboard)

		api.POST("/redemptions", h.createRedemption)
		api.GET("/redemptions", h.listRedemptions)
	}

	admin := api.Group("/admin", middleware.AdminAuth(cfg.Admin.Tokens))
	{
		admin.Any("/promo", h.adminPromo)
		admin.Any("/redemptions", h.adminRedemptions)
		admin.Any("/availability", h.adminAvailability)
		admin.Any("/tasks", h.adminTasks)
	}
}

// ------------------------------------------------------------------
// Profiles
// ------------------------------------------------------------------

type registerRequest struct {
	Email string `json:"email"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body"))
		return
	}

	acc, err := h.accounts.Register(c.Request.Context(), req.Email)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, acc)
}

func (h *Handler) getProfile(c *gin.Context) {
	acc, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

type updateProfileRequest struct {
	Email string `json:"email"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body"))
		return
	}

	acc, err := h.accounts.UpdateContact(c.Request.Context(), c.Param("id"), req.Email)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) listTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.ledger.List(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

func (h *Handler) checkBalance(c *gin.Context) {
	d, err := h.accounts.Check(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) repairBalance(c *gin.Context) {
	acc, err := h.accounts.Repair(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.accounts.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// ------------------------------------------------------------------
// Promo codes
// ------------------------------------------------------------------

type redeemPromoRequest struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
}

func (h *Handler) redeemPromo(c *gin.Context) {
	var req redeemPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body"))
		return
	}

	redeemed, err := h.promos.Redeem(c.Request.Context(), req.AccountID, req.Code)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, redeemed)
}

// ------------------------------------------------------------------
// Tasks
// ------------------------------------------------------------------

func (h *Handler) listTasks(c *gin.Context) {
	tasks, err := h.tasks.ListActive(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type completeTaskRequest struct {
	AccountID string `json:"account_id"`
	TaskID    string `json:"task_id"`
}

func (h *Handler) completeTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body"))
		return
	}

	completion, err := h.tasks.Complete(c.Request.Context(), req.AccountID, req.TaskID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, completion)
}

func (h *Handler) quizAllowance(c *gin.Context) {
	allowance, err := h.tasks.QuizAllowance(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, allowance)
}

// ------------------------------------------------------------------
// Redemption requests
// ------------------------------------------------------------------

func (h *Handler) createRedemption(c *gin.Context) {
	var req redemption.CreateParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body"))
		return
	}

	request, err := h.redemptions.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (h *Handler) listRedemptions(c *gin.Context) {
	requests, err := h.redemptions.ListByAccount(c.Request.Context(), c.Query("account_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
