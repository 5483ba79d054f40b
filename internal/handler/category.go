package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/service"
)

type CategoryHandler struct {
	categoryService *service.CategoryService
}

func NewCategoryHandler(categoryService *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Categories retrieved successfully", categories)
}

func (h *CategoryHandler) GetBySlug(c *gin.Context) {
	category, err := h.categoryService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Category retrieved successfully", category)
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req dto.CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, "Category created successfully", category)
}

func (h *CategoryHandler) Update(c *gin.Context) {
	id, valid := paramID(c, "id", "category")
	if !valid {
		return
	}
	var req dto.UpdateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Category updated successfully", category)
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	id, valid := paramID(c, "id", "category")
	if !valid {
		return
	}

	if err := h.categoryService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Category deleted successfully", nil)
}
