package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crowdfund-service/internal/ledger"
	"crowdfund-service/internal/service/funding"
)

type CampaignHandler struct {
	fundingService *funding.Service
	logger         *zap.Logger
}

func NewCampaignHandler(fundingService *funding.Service, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		fundingService: fundingService,
		logger:         logger,
	}
}

type milestoneRequest struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount" binding:"required"`
}

type createCampaignRequest struct {
	Description string             `json:"description"`
	Goal        int64              `json:"goal" binding:"required"`
	Deadline    time.Time          `json:"deadline" binding:"required"`
	Milestones  []milestoneRequest `json:"milestones"`
}

type contributeRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// CreateCampaign registers a new campaign for the authenticated user.
// POST /campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := ledger.CampaignInput{
		Description: req.Description,
		Goal:        req.Goal,
		Deadline:    req.Deadline,
	}
	for _, m := range req.Milestones {
		in.MilestoneDescriptions = append(in.MilestoneDescriptions, m.Description)
		in.MilestoneAmounts = append(in.MilestoneAmounts, m.Amount)
	}

	campaign, err := h.fundingService.CreateCampaign(c.Request.Context(), userID.(int), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": campaign.ID})
}

// Contribute adds funds from the authenticated user to a campaign.
// POST /campaigns/:id/contributions
func (h *CampaignHandler) Contribute(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	var req contributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	campaign, err := h.fundingService.Contribute(c.Request.Context(), campaignID, userID.(int), req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id": campaign.ID,
		"raised":      campaign.Raised,
	})
}

// ReleaseFunds releases the next unreleased milestone to the creator.
// POST /campaigns/:id/release
func (h *CampaignHandler) ReleaseFunds(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	res, err := h.fundingService.ReleaseFunds(c.Request.Context(), campaignID, userID.(int))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"milestone_index":   res.MilestoneIndex,
		"amount":            res.Amount,
		"current_milestone": res.CurrentMilestone,
		"completed":         res.Completed,
	})
}

// GetCampaign returns the read projection of one campaign. Unknown ids
// yield zero-valued fields, not a 404.
// GET /campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	c.JSON(http.StatusOK, h.fundingService.CampaignDetails(c.Request.Context(), campaignID))
}

// GetMilestone returns one milestone of a campaign.
// GET /campaigns/:id/milestones/:index
func (h *CampaignHandler) GetMilestone(c *gin.Context) {
	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milestone index"})
		return
	}

	m, err := h.fundingService.MilestoneDetails(campaignID, index)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// ListCampaigns returns all campaigns in id order.
// GET /campaigns
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"campaigns": h.fundingService.ListCampaigns(),
		"total":     h.fundingService.TotalCampaigns(),
	})
}

// respondError maps ledger errors onto HTTP statuses.
func (h *CampaignHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrGoalNotPositive),
		errors.Is(err, ledger.ErrDeadlineNotFuture),
		errors.Is(err, ledger.ErrMilestoneMismatch),
		errors.Is(err, ledger.ErrMilestoneAmountNotPositive),
		errors.Is(err, ledger.ErrAmountNotPositive):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, ledger.ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, ledger.ErrCampaignNotFound),
		errors.Is(err, ledger.ErrMilestoneOutOfRange):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, ledger.ErrCampaignExpired),
		errors.Is(err, ledger.ErrGoalReached),
		errors.Is(err, ledger.ErrGoalNotReached),
		errors.Is(err, ledger.ErrCampaignCompleted),
		errors.Is(err, ledger.ErrMilestoneAlreadyReached):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, ledger.ErrTransferFailed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	default:
		h.logger.Error("Unhandled campaign error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
