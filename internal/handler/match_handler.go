package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-demo/matchroom/internal/dto/request"
	"github.com/go-demo/matchroom/internal/dto/response"
	"github.com/go-demo/matchroom/internal/middleware"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/go-demo/matchroom/internal/service"
)

type MatchHandler struct {
	matchmaker *service.Matchmaker
}

func NewMatchHandler(matchmaker *service.Matchmaker) *MatchHandler {
	return &MatchHandler{
		matchmaker: matchmaker,
	}
}

// StartSearch godoc
// @Summary Start matchmaking
// @Description Submit a search. Any pending search of the caller is replaced. Progress, match-found and match-error events arrive on the returned channel.
// @Tags matchmaking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body request.StartSearchRequest true "Matching criteria"
// @Success 202 {object} response.Response{data=response.SearchStartedResponse}
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/searches [post]
func (h *MatchHandler) StartSearch(c *gin.Context) {
	var req request.StartSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	task, err := h.matchmaker.StartSearch(c.Request.Context(), middleware.GetUserID(c), req.ToModel())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, response.NewSearchStartedResponse(task))
}

// GetSearch godoc
// @Summary Get search
// @Description Get the state of one of the caller's searches. A matched search
// @Description reports its room code for a short while; after that use /api/v1/rooms/me
// @Tags matchmaking
// @Produce json
// @Security BearerAuth
// @Param id path string true "Search ID"
// @Success 200 {object} response.Response{data=response.SearchResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/searches/{id} [get]
func (h *MatchHandler) GetSearch(c *gin.Context) {
	searchID := c.Param("id")
	if !utils.ValidateUUID(searchID) {
		response.BadRequest(c, "invalid search id")
		return
	}

	status, err := h.matchmaker.GetSearch(c.Request.Context(), middleware.GetUserID(c), searchID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewSearchResponse(status))
}

// CancelSearch godoc
// @Summary Cancel search
// @Description Cancel one of the caller's pending searches
// @Tags matchmaking
// @Produce json
// @Security BearerAuth
// @Param id path string true "Search ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/searches/{id} [delete]
func (h *MatchHandler) CancelSearch(c *gin.Context) {
	searchID := c.Param("id")
	if !utils.ValidateUUID(searchID) {
		response.BadRequest(c, "invalid search id")
		return
	}

	if err := h.matchmaker.CancelSearch(c.Request.Context(), middleware.GetUserID(c), searchID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "search cancelled", nil)
}
