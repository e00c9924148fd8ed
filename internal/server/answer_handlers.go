package server

import (
	"stackit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateAnswer handles POST /api/answers
// @Summary Answer a question
// @Tags answers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{questionId=int,content=string} true "Answer"
// @Success 201 {object} models.Answer
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /answers [post]
func (s *Server) CreateAnswer(c *fiber.Ctx) error {
	var req struct {
		QuestionID uint   `json:"questionId"`
		Content    string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c)
	}

	a, err := s.answerService.Create(c.UserContext(), service.CreateAnswerInput{
		AuthorID:   currentUserID(c),
		QuestionID: req.QuestionID,
		Content:    req.Content,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// AcceptAnswer handles POST /api/answers/:id/accept
// @Summary Accept an answer
// @Description Only the question author may accept; any previously accepted answer is cleared
// @Tags answers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Success 200 {object} models.Answer
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /answers/{id}/accept [post]
func (s *Server) AcceptAnswer(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	a, err := s.answerService.Accept(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(a)
}
