package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/dentalmart/marketplace/internal/config"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"

	_ "github.com/lib/pq"
)

// Sentinel errors surfaced by conditional updates. Services translate these
// into business-rule responses.
var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrCouponExhausted      = errors.New("coupon usage cap reached")
	ErrInsufficientBalance  = errors.New("gift card balance too low")
	ErrOrderNotCancellable  = errors.New("order is not in a cancellable state")
)

type Repositories struct {
	DB           *sql.DB
	User         UserRepository
	Product      ProductRepository
	Category     CategoryRepository
	Cart         CartRepository
	Order        OrderRepository
	Coupon       CouponRepository
	GiftCard     GiftCardRepository
	Review       ReviewRepository
	Wishlist     WishlistRepository
	Payment      PaymentRepository
	Notification NotificationRepository
	Stats        StatsRepository
}

func New(cfg *config.Config) (*Repositories, error) {

	db, err := otelsql.Open("postgres", cfg.Database.GetDSN(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Repositories{
		DB:           db,
		User:         NewUserRepo(db),
		Product:      NewProductRepo(db),
		Category:     NewCategoryRepo(db),
		Cart:         NewCartRepo(db),
		Order:        NewOrderRepo(db),
		Coupon:       NewCouponRepo(db),
		GiftCard:     NewGiftCardRepo(db),
		Review:       NewReviewRepo(db),
		Wishlist:     NewWishlistRepo(db),
		Payment:      NewPaymentRepo(db),
		Notification: NewNotificationRepo(db),
		Stats:        NewStatsRepo(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
