package server

import (
	"stackit/internal/models"
	"stackit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Vote handles POST /api/vote
// @Summary Vote on a question or answer
// @Description Repeating a vote withdraws it; the opposite value flips it
// @Tags votes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{targetId=int,targetType=string,value=int} true "Vote"
// @Success 200 {object} repository.VoteResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /vote [post]
func (s *Server) Vote(c *fiber.Ctx) error {
	var req struct {
		TargetID   uint              `json:"targetId"`
		TargetType models.TargetType `json:"targetType"`
		Value      int               `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid vote data"))
	}

	res, err := s.voteService.Vote(c.UserContext(), service.VoteInput{
		UserID:     currentUserID(c),
		TargetID:   req.TargetID,
		TargetType: req.TargetType,
		Value:      req.Value,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}
