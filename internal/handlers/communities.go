package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/services"
)

type CommunityHandler struct {
	communities *services.CommunityService
	logger      *zap.Logger
}

func NewCommunityHandler(communities *services.CommunityService, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{communities: communities, logger: logger}
}

func (h *CommunityHandler) GetCommunities(c *gin.Context) {
	list, err := h.communities.List(c.Request.Context(), 0, optionalUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetRecentCommunities returns the newest few communities for the sidebar
func (h *CommunityHandler) GetRecentCommunities(c *gin.Context) {
	list, err := h.communities.List(c.Request.Context(), services.RecentCommunities, optionalUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CommunityHandler) GetCommunity(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	community, err := h.communities.Get(c.Request.Context(), id, optionalUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) CreateCommunity(c *gin.Context) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	community, err := h.communities.Create(c.Request.Context(), currentUser(c), input.Name, input.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, community)
}

// GetMembership answers isMember for the caller; anonymous callers are never members.
func (h *CommunityHandler) GetMembership(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	m, err := h.communities.Membership(c.Request.Context(), optionalUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *CommunityHandler) JoinCommunity(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	m, err := h.communities.Join(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined community", "isMember": m.IsMember, "role": m.Role})
}

func (h *CommunityHandler) LeaveCommunity(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.communities.Leave(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left community", "isMember": false})
}

func (h *CommunityHandler) GetPosts(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	page, err := h.communities.Posts(c.Request.Context(), id, services.ListQuery{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", services.DefaultPageSize),
		Search: strings.TrimSpace(c.Query("search")),
		SortBy: c.Query("sortBy"),
		Order:  c.Query("order"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreatePost posts a doubt into the community and awards the usual credit
func (h *CommunityHandler) CreatePost(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input services.CreateDoubtInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	created, err := h.communities.CreatePost(c.Request.Context(), currentUser(c), id, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CommunityHandler) GetComments(c *gin.Context) {
	id, postID, err := communityPost(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	comments, err := h.communities.Comments(c.Request.Context(), id, postID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *CommunityHandler) CreateComment(c *gin.Context) {
	id, postID, err := communityPost(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	comment, err := h.communities.AddComment(c.Request.Context(), currentUser(c), id, postID, input.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func communityPost(c *gin.Context) (int, int, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	postID, err := paramID(c, "postId")
	if err != nil {
		return 0, 0, err
	}
	return id, postID, nil
}
