package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	tx          repo.TransactionManager
	clock       Clock
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository, tx repo.TransactionManager, clock Clock) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		tx:          tx,
		clock:       clock,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID string) (model.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//非公開は存在しない扱い
	if !p.IsAvailable {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

type AdminCreateProductInput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       string `json:"price"`
	Stock       int64  `json:"stock"`
	IsAvailable bool   `json:"is_available"`
}

// 商品登録（IDはISBNなど呼び出し側が決める）
func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID string, in AdminCreateProductInput) (model.Product, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var issues []Issue
	id := strings.TrimSpace(in.ID)
	if id == "" || len(id) > 64 {
		issues = append(issues, Issue{Index: -1, Field: "id", Message: "id required (max 64)"})
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		issues = append(issues, Issue{Index: -1, Field: "title", Message: "title required"})
	}
	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil || price.IsNegative() {
		issues = append(issues, Issue{Index: -1, Field: "price", Message: "price must be a number >= 0"})
	}
	if in.Stock < 0 {
		issues = append(issues, Issue{Index: -1, Field: "stock", Message: "stock must be >= 0"})
	}
	if len(issues) > 0 {
		return model.Product{}, NewValidationError("invalid product", issues)
	}

	now := u.clock.Now().UTC()
	p := model.Product{
		ID:          id,
		Title:       title,
		Price:       price.Round(2),
		Stock:       in.Stock,
		IsAvailable: in.IsAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		err := r.Products().Create(ctx, p)
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "product already exists")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionCreateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   p.ID,
			AfterJSON:    fmt.Sprintf(`{"price":%q,"stock":%d}`, p.Price.StringFixed(2), p.Stock),
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID string, productID string, newStock int64, reason string) error {
	if strings.TrimSpace(adminUserID) == "" {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if newStock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）。確定処理と競合しないよう行ロック
		locked, err := r.Products().FindByIDsForUpdate(ctx, []string{productID})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(locked) == 0 {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		before := locked[0].Stock

		//在庫の現在値を更新
		if err := r.Products().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//「誰が」「何を」「どの対象に」「どう変えたか」を残す
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, before),
			AfterJSON:    fmt.Sprintf(`{"stock":%d,"reason":%q}`, newStock, reason),
			CreatedAt:    u.clock.Now().UTC(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
}
