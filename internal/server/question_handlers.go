package server

import (
	"stackit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListQuestions handles GET /api/questions
// @Summary List questions
// @Description Newest first, optionally filtered by a case-insensitive search over title, description and tags
// @Tags questions
// @Produce json
// @Param search query string false "Search term"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} models.QuestionPage
// @Router /questions [get]
func (s *Server) ListQuestions(c *fiber.Ctx) error {
	page, err := s.questionService.List(c.UserContext(), service.ListQuestionsInput{
		Search: c.Query("search"),
		Page:   c.QueryInt("page", service.DefaultPage),
		Limit:  c.QueryInt("limit", service.DefaultLimit),
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(page)
}

// GetQuestion handles GET /api/questions/:id
// @Summary Question detail
// @Description The question and its answers, accepted first then by votes.
// @Description With a token, the question and each answer carry the caller's userVote.
// @Tags questions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 200 {object} models.QuestionDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /questions/{id} [get]
func (s *Server) GetQuestion(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	detail, err := s.questionService.Get(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.voteService.ViewerVotes(c.UserContext(), currentUserID(c), detail); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(detail)
}

// CreateQuestion handles POST /api/questions
// @Summary Ask a question
// @Tags questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,description=string,tags=[]string} true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} models.ErrorResponse
// @Router /questions [post]
func (s *Server) CreateQuestion(c *fiber.Ctx) error {
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c)
	}

	q, err := s.questionService.Create(c.UserContext(), service.CreateQuestionInput{
		AuthorID:    currentUserID(c),
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

// GetTags handles GET /api/tags
// @Summary Tags in use
// @Tags questions
// @Produce json
// @Success 200 {array} models.TagCount
// @Router /tags [get]
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.questionService.Tags(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(tags)
}
