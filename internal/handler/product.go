package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/service"
)

type ProductHandler struct {
	productService *service.ProductService
}

func NewProductHandler(productService *service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

func (h *ProductHandler) List(c *gin.Context) {
	var q dto.ListProductsQuery
	if !bindQuery(c, &q) {
		return
	}

	products, pagination, err := h.productService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	paged(c, "Products retrieved successfully", products, pagination)
}

func (h *ProductHandler) Featured(c *gin.Context) {
	var q dto.LimitQuery
	if !bindQuery(c, &q) {
		return
	}

	products, err := h.productService.Featured(c.Request.Context(), q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Featured products retrieved successfully", products)
}

func (h *ProductHandler) GetByID(c *gin.Context) {
	id, valid := paramID(c, "id", "product")
	if !valid {
		return
	}

	product, err := h.productService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Product retrieved successfully", product)
}

func (h *ProductHandler) GetBySlug(c *gin.Context) {
	product, err := h.productService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Product retrieved successfully", product)
}

func (h *ProductHandler) Related(c *gin.Context) {
	id, valid := paramID(c, "id", "product")
	if !valid {
		return
	}
	categoryID, valid := paramID(c, "categoryId", "category")
	if !valid {
		return
	}
	var q dto.LimitQuery
	if !bindQuery(c, &q) {
		return
	}

	products, err := h.productService.Related(c.Request.Context(), id, categoryID, q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Related products retrieved successfully", products)
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, "Product created successfully", product)
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, valid := paramID(c, "id", "product")
	if !valid {
		return
	}
	var req dto.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Product updated successfully", product)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, valid := paramID(c, "id", "product")
	if !valid {
		return
	}

	if err := h.productService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Product deleted successfully", nil)
}
