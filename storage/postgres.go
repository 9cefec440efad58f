package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rentsync/models"
)

// PostgresStore is the canonical order/product store. The order
// management system owns the schema; this store only reads the catalog
// and reconciles scraped rows into it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// =============================================================================
// Scraped orders
// =============================================================================

// FindOrderStatus returns the stored canonical status for a vendor
// order number. ok is false when the order is unknown.
func (s *PostgresStore) FindOrderStatus(ctx context.Context, orderNo string) (models.Status, bool, error) {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM scraped_orders WHERE order_no = $1`, orderNo).Scan(&status)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return models.Status(status), true, nil
}

// UpsertScrapedOrder merges one scraped order, keyed by order_no.
// Empty scraped values never overwrite stored non-empty values.
func (s *PostgresStore) UpsertScrapedOrder(ctx context.Context, o *models.ScrapedOrder) error {
	query := `
		INSERT INTO scraped_orders (
			order_no, site_id, customer_name, customer_phone, address,
			product_title, product_sku, product_id, variant_id, merchant_name,
			rental_days, rent_price, insurance_price, deposit, total_amount,
			status, vendor_status, platform, channel, rent_start, return_deadline,
			out_company, out_tracking_no, out_last_event,
			ret_company, ret_tracking_no, ret_last_event,
			scraped_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, $27, $28
		)
		ON CONFLICT (order_no) DO UPDATE SET
			customer_name = COALESCE(NULLIF(EXCLUDED.customer_name, ''), scraped_orders.customer_name),
			customer_phone = COALESCE(NULLIF(EXCLUDED.customer_phone, ''), scraped_orders.customer_phone),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), scraped_orders.address),
			product_title = COALESCE(NULLIF(EXCLUDED.product_title, ''), scraped_orders.product_title),
			product_sku = COALESCE(NULLIF(EXCLUDED.product_sku, ''), scraped_orders.product_sku),
			product_id = COALESCE(EXCLUDED.product_id, scraped_orders.product_id),
			variant_id = COALESCE(EXCLUDED.variant_id, scraped_orders.variant_id),
			merchant_name = COALESCE(NULLIF(EXCLUDED.merchant_name, ''), scraped_orders.merchant_name),
			rental_days = COALESCE(NULLIF(EXCLUDED.rental_days, 0), scraped_orders.rental_days),
			rent_price = COALESCE(NULLIF(EXCLUDED.rent_price, 0), scraped_orders.rent_price),
			insurance_price = COALESCE(NULLIF(EXCLUDED.insurance_price, 0), scraped_orders.insurance_price),
			deposit = COALESCE(NULLIF(EXCLUDED.deposit, 0), scraped_orders.deposit),
			total_amount = COALESCE(NULLIF(EXCLUDED.total_amount, 0), scraped_orders.total_amount),
			status = EXCLUDED.status,
			vendor_status = COALESCE(NULLIF(EXCLUDED.vendor_status, ''), scraped_orders.vendor_status),
			platform = COALESCE(NULLIF(EXCLUDED.platform, ''), scraped_orders.platform),
			channel = COALESCE(NULLIF(EXCLUDED.channel, ''), scraped_orders.channel),
			rent_start = COALESCE(NULLIF(EXCLUDED.rent_start, ''), scraped_orders.rent_start),
			return_deadline = COALESCE(NULLIF(EXCLUDED.return_deadline, ''), scraped_orders.return_deadline),
			out_company = COALESCE(NULLIF(EXCLUDED.out_company, ''), scraped_orders.out_company),
			out_tracking_no = COALESCE(NULLIF(EXCLUDED.out_tracking_no, ''), scraped_orders.out_tracking_no),
			out_last_event = COALESCE(NULLIF(EXCLUDED.out_last_event, ''), scraped_orders.out_last_event),
			ret_company = COALESCE(NULLIF(EXCLUDED.ret_company, ''), scraped_orders.ret_company),
			ret_tracking_no = COALESCE(NULLIF(EXCLUDED.ret_tracking_no, ''), scraped_orders.ret_tracking_no),
			ret_last_event = COALESCE(NULLIF(EXCLUDED.ret_last_event, ''), scraped_orders.ret_last_event),
			scraped_at = EXCLUDED.scraped_at`

	_, err := s.pool.Exec(ctx, query,
		o.OrderNo, o.SiteID, o.CustomerName, o.CustomerPhone, o.Address,
		o.ProductTitle, o.ProductSKU, o.ProductID, o.VariantID, o.MerchantName,
		o.RentalDays, o.RentPrice, o.InsurancePrice, o.Deposit, o.TotalAmount,
		string(o.Status), o.VendorStatus, o.Platform, o.Channel, o.RentStart, o.ReturnDeadline,
		o.Outbound.Company, o.Outbound.TrackingNo, o.Outbound.LastEvent,
		o.Return.Company, o.Return.TrackingNo, o.Return.LastEvent,
		o.ScrapedAt)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.OrderNo, err)
	}
	return nil
}

// PurgeOrdersOutsideMerchants deletes scrape-owned orders for a site
// whose merchant is not in the allow-list. Self-healing when the
// allow-list shrinks between runs.
func (s *PostgresStore) PurgeOrdersOutsideMerchants(ctx context.Context, siteID string, merchants []string) (int64, error) {
	if len(merchants) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM scraped_orders WHERE site_id = $1 AND NOT (merchant_name = ANY($2))`,
		siteID, merchants)
	if err != nil {
		return 0, fmt.Errorf("purge orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListScrapedOrders returns all stored scraped orders for a site,
// used by the offline reconciliation sync.
func (s *PostgresStore) ListScrapedOrders(ctx context.Context, siteID string) ([]models.ScrapedOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_no, site_id, status, vendor_status,
			out_company, out_tracking_no, out_last_event,
			ret_company, ret_tracking_no, ret_last_event,
			scraped_at
		FROM scraped_orders WHERE site_id = $1`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.ScrapedOrder
	for rows.Next() {
		var o models.ScrapedOrder
		var status string
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.SiteID, &status, &o.VendorStatus,
			&o.Outbound.Company, &o.Outbound.TrackingNo, &o.Outbound.LastEvent,
			&o.Return.Company, &o.Return.TrackingNo, &o.Return.LastEvent,
			&o.ScrapedAt); err != nil {
			return nil, err
		}
		o.Status = models.Status(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// =============================================================================
// Product catalog
// =============================================================================

// ListProducts loads the catalog with variants and matching keywords.
func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(keywords, '{}') FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*models.Product)
	var order []int64
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Keywords); err != nil {
			return nil, err
		}
		byID[p.ID] = &p
		order = append(order, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := s.pool.Query(ctx,
		`SELECT id, product_id, name FROM product_variants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()

	for vrows.Next() {
		var v models.Variant
		if err := vrows.Scan(&v.ID, &v.ProductID, &v.Name); err != nil {
			return nil, err
		}
		if p, ok := byID[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(order))
	for _, id := range order {
		products = append(products, *byID[id])
	}
	return products, nil
}

// =============================================================================
// Offline (manually created) orders
// =============================================================================

// ListOfflineOrdersByOrderNos finds manually created orders whose
// cross-reference number matches a scraped order number.
func (s *PostgresStore) ListOfflineOrdersByOrderNos(ctx context.Context, orderNos []string) ([]models.OfflineOrder, error) {
	if len(orderNos) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_no, status,
			COALESCE(out_company, ''), COALESCE(out_tracking_no, ''), COALESCE(out_last_event, ''),
			COALESCE(ret_company, ''), COALESCE(ret_tracking_no, ''), COALESCE(ret_last_event, ''),
			updated_at
		FROM offline_orders WHERE order_no = ANY($1)`, orderNos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.OfflineOrder
	for rows.Next() {
		var o models.OfflineOrder
		var status string
		if err := rows.Scan(&o.ID, &o.OrderNo, &status,
			&o.Outbound.Company, &o.Outbound.TrackingNo, &o.Outbound.LastEvent,
			&o.Return.Company, &o.Return.TrackingNo, &o.Return.LastEvent,
			&o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Status = models.Status(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOfflineOrder writes back reconciled status/logistics fields.
func (s *PostgresStore) UpdateOfflineOrder(ctx context.Context, o *models.OfflineOrder) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE offline_orders SET
			status = $2,
			out_company = $3, out_tracking_no = $4, out_last_event = $5,
			ret_company = $6, ret_tracking_no = $7, ret_last_event = $8,
			updated_at = NOW()
		WHERE id = $1`,
		o.ID, string(o.Status),
		o.Outbound.Company, o.Outbound.TrackingNo, o.Outbound.LastEvent,
		o.Return.Company, o.Return.TrackingNo, o.Return.LastEvent)
	if err != nil {
		return fmt.Errorf("update offline order %s: %w", o.OrderNo, err)
	}
	return nil
}
