package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

func (r *ProductGormRepository) FindByID(ctx context.Context, productID string) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	return r.findByIDs(r.db.WithContext(ctx), ids)
}

// 確定時の再チェック用。id順にロックを取ってデッドロックを避ける
func (r *ProductGormRepository) FindByIDsForUpdate(ctx context.Context, ids []string) ([]model.Product, error) {
	return r.findByIDs(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ids)
}

func (r *ProductGormRepository) findByIDs(q *gorm.DB, ids []string) ([]model.Product, error) {
	products := []model.Product{}
	if len(ids) == 0 {
		return products, nil
	}
	if err := q.Where("id IN ?", ids).Order("id asc").Find(&products).Error; err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

func (r *ProductGormRepository) ListPublic(ctx context.Context, in repo.ProductListQuery) ([]model.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Product{}).Where("is_available = ?", true)

	if s := strings.TrimSpace(in.Q); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if in.MinPrice != nil {
		q = q.Where("price >= ?", *in.MinPrice)
	}
	if in.MaxPrice != nil {
		q = q.Where("price <= ?", *in.MaxPrice)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	switch in.Sort {
	case "price_asc":
		q = q.Order("price asc").Order("id asc")
	case "price_desc":
		q = q.Order("price desc").Order("id asc")
	default:
		q = q.Order("created_at desc").Order("id asc")
	}

	products := []model.Product{}
	offset := (in.Page - 1) * in.Limit
	if err := q.Limit(in.Limit).Offset(offset).Find(&products).Error; err != nil {
		return []model.Product{}, 0, err
	}
	return products, total, nil
}

func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) error {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isDuplicateKey(err) {
			return repo.ErrConflict
		}
		return err
	}
	return nil
}

// 在庫を減らす（確定時のみ。足りるかどうかは見ない）
func (r *ProductGormRepository) DecreaseStock(ctx context.Context, productID string, qty int64) error {
	return r.addStock(ctx, productID, -qty)
}

// 在庫戻し（キャンセル）
func (r *ProductGormRepository) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	return r.addStock(ctx, productID, qty)
}

func (r *ProductGormRepository) addStock(ctx context.Context, productID string, delta int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ProductGormRepository) SetStock(ctx context.Context, productID string, stock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      stock,
			"updated_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
