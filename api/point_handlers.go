package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/Aidin1998/pincex_points/common/errors"
	"github.com/Aidin1998/pincex_points/pkg/models"
)

// AmountRequest is the body of charge and use requests.
// The sign of Amount is checked by the point service.
type AmountRequest struct {
	Amount *int64 `json:"amount" validate:"required"`
}

type pointMutator func(c *gin.Context, userID uint64, amount int64) (*models.UserPoint, error)

// getPoint returns the user's current balance
// @Summary Get user point
// @Tags point
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserPoint
// @Failure 400 {object} errors.ProblemDetails
// @Router /point/{id} [get]
func (s *Server) getPoint(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	p, err := s.points.GetBalance(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// getPointHistories returns the user's mutations oldest first
// @Summary List user point histories
// @Tags point
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {array} models.PointHistory
// @Router /point/{id}/histories [get]
func (s *Server) getPointHistories(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	histories, err := s.points.GetHistory(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, histories)
}

// chargePoint adds points to the user's balance
// @Summary Charge user point
// @Tags point
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body AmountRequest true "Amount to charge"
// @Success 200 {object} models.UserPoint
// @Failure 400 {object} errors.ProblemDetails
// @Failure 503 {object} errors.ProblemDetails
// @Router /point/{id}/charge [patch]
func (s *Server) chargePoint(c *gin.Context) {
	s.mutatePoint(c, func(c *gin.Context, userID uint64, amount int64) (*models.UserPoint, error) {
		return s.points.Charge(c.Request.Context(), userID, amount)
	})
}

// usePoint subtracts points from the user's balance
// @Summary Use user point
// @Tags point
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body AmountRequest true "Amount to use"
// @Success 200 {object} models.UserPoint
// @Failure 400 {object} errors.ProblemDetails
// @Failure 503 {object} errors.ProblemDetails
// @Router /point/{id}/use [patch]
func (s *Server) usePoint(c *gin.Context) {
	s.mutatePoint(c, func(c *gin.Context, userID uint64, amount int64) (*models.UserPoint, error) {
		return s.points.Use(c.Request.Context(), userID, amount)
	})
}

func (s *Server) mutatePoint(c *gin.Context, mutate pointMutator) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "invalid request body")
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		_ = c.Error(err)
		return
	}

	p, err := mutate(c, userID, *req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) userIDParam(c *gin.Context) (uint64, bool) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "user id must be a non-negative integer",
			apierrors.ValidationError{Field: "id", Message: err.Error(), Code: "uint64"})
		return 0, false
	}
	return userID, true
}
