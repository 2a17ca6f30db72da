package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/dto"
	apierrors "github.com/harusame/workshop-live-api/internal/errors"
	"github.com/harusame/workshop-live-api/internal/middleware"
	"github.com/harusame/workshop-live-api/internal/services"
	"github.com/harusame/workshop-live-api/internal/utils"
)

// GroupHandler coordinates task group HTTP handlers.
type GroupHandler struct {
	groupService *services.GroupService
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

// CreateGroup creates a group for a task with the current user as owner.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	type CreateGroupRequest struct {
		Name string `json:"name" binding:"required"`
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	group, err := h.groupService.CreateGroup(services.CreateGroupInput{
		TaskID:  taskID,
		Name:    req.Name,
		OwnerID: userID,
	})
	if err != nil {
		respondGroupError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToGroupDTO(*group))
}

// ListGroups lists a task's groups, paginated.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	groups, total, err := h.groupService.ListGroups(taskID, params)
	if err != nil {
		respondGroupError(c, err)
		return
	}

	groupDTOs := make([]dto.GroupDTO, len(groups))
	for i, group := range groups {
		groupDTOs[i] = dto.ToGroupDTO(group)
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": groupDTOs,
		"pagination": utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// JoinGroup adds the current user to the group matching the submitted party
// code. Joining twice succeeds both times.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type JoinGroupRequest struct {
		PartyCode string `json:"party_code" binding:"required"`
	}

	var req JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	group, err := h.groupService.JoinByCode(req.PartyCode, userID)
	if err != nil {
		respondGroupError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToGroupDTO(*group))
}

// ListMembers lists a group's members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}

	members, err := h.groupService.ListMembers(groupID)
	if err != nil {
		respondGroupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": dto.ToGroupMemberDTOs(members)})
}

// RemoveMember removes a member from a group.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.groupService.RemoveMember(groupID, actorID, targetID); err != nil {
		respondGroupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// DeleteGroup deletes a group and its memberships (owner only).
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}

	if err := h.groupService.DeleteGroup(groupID, actorID); err != nil {
		respondGroupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

func groupIDParam(c *gin.Context) (uint64, bool) {
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid group ID")
		return 0, false
	}
	return groupID, true
}

func respondGroupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		apierrors.NotFound(c, "Group not found")
	case errors.Is(err, services.ErrGroupMemberNotFound):
		apierrors.NotFound(c, "Group member not found")
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrInvalidGroupName):
		apierrors.BadRequest(c, "Group name cannot be empty")
	case errors.Is(err, services.ErrCannotRemoveOwner):
		apierrors.BadRequest(c, "The group owner cannot be removed")
	case errors.Is(err, services.ErrNotGroupOwner):
		apierrors.Forbidden(c, "Only the group owner can perform this action")
	case errors.Is(err, services.ErrPartyCodeExhausted):
		apierrors.ServiceUnavailable(c, "Could not issue a unique party code")
	default:
		apierrors.InternalError(c, "")
	}
}
