package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/dto"
)

func ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, dto.Envelope{Success: true, Message: message, Data: data})
}

func created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, dto.Envelope{Success: true, Message: message, Data: data})
}

func paged(c *gin.Context, message string, data any, pagination *dto.Pagination) {
	c.JSON(http.StatusOK, dto.Envelope{Success: true, Message: message, Data: data, Pagination: pagination})
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, apperror.FromValidation(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		fail(c, apperror.FromValidation(err))
		return false
	}
	return true
}

// paramID parses a uuid path parameter; what names the resource in the 400.
func paramID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, apperror.BadRequest("Invalid %s ID", what))
		return uuid.Nil, false
	}
	return id, true
}
