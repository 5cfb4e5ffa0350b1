// Command seed-db loads demo data into the POS database: a menu, dining
// tables, a few customers and employees, discount codes, and API keys for
// local testing.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

func main() {
	var (
		databaseURL  string
		menuFile     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or POS_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or POS_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("POS_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or POS_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("POS_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, menuFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, menuFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMenu(ctx, pool, menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}
	if err := seedTables(ctx, pool); err != nil {
		return errors.Wrap(err, "seed tables")
	}
	if err := seedPeople(ctx, pool); err != nil {
		return errors.Wrap(err, "seed customers and employees")
	}
	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedAPIKeys(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool, menuFile string) error {
	slog.Info("reading menu file", slog.String("path", menuFile))

	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, category, price, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, category = EXCLUDED.category,
			    price = EXCLUDED.price, active = TRUE`,
			p.ID, p.Name, p.Category, p.Price,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedTables(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding dining tables")

	type tbl struct {
		id     string
		number int
		area   string
	}
	tables := []tbl{
		{"tbl-01", 1, "main-hall"},
		{"tbl-02", 2, "main-hall"},
		{"tbl-03", 3, "main-hall"},
		{"tbl-04", 4, "main-hall"},
		{"tbl-05", 5, "terrace"},
		{"tbl-06", 6, "terrace"},
		{"tbl-07", 7, "private"},
		{"tbl-08", 8, "private"},
	}

	for _, t := range tables {
		_, err := pool.Exec(ctx, `
			INSERT INTO restaurant_tables (id, number, area_id, status)
			VALUES ($1, $2, $3, 'available')
			ON CONFLICT (id) DO UPDATE SET number = EXCLUDED.number, area_id = EXCLUDED.area_id`,
			t.id, t.number, t.area,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert table %s", t.id)
		}
	}

	return nil
}

func seedPeople(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding customers and employees")

	customers := [][3]string{
		{"cust-walkin", "Walk-in", "standard"},
		{"cust-silver", "Tran Thi B", "silver"},
		{"cust-gold", "Nguyen Van A", "gold"},
		{"cust-vip", "Le Van C", "vip"},
	}
	for _, c := range customers {
		_, err := pool.Exec(ctx, `
			INSERT INTO customers (id, name, tier, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tier = EXCLUDED.tier, active = TRUE`,
			c[0], c[1], c[2],
		)
		if err != nil {
			return errors.Wrapf(err, "upsert customer %s", c[0])
		}
	}

	employees := []struct {
		id    string
		name  string
		roles []string
	}{
		{"emp-manager", "Pham Thi D", []string{"manager", "cashier"}},
		{"emp-cashier", "Hoang Van E", []string{"cashier"}},
		{"emp-waiter", "Vo Thi F", []string{"waiter"}},
	}
	for _, e := range employees {
		_, err := pool.Exec(ctx, `
			INSERT INTO employees (id, name, roles, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, roles = EXCLUDED.roles, active = TRUE`,
			e.id, e.name, e.roles,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert employee %s", e.id)
		}
	}

	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo discounts")

	type disc struct {
		id, code, typ string
		value         decimal.Decimal
		minOrder      decimal.Decimal
		maxDiscount   decimal.Decimal
		tiers         []string
		buyQty        int
		freeProduct   string
		freeQty       int
	}
	discounts := []disc{
		{
			id: "disc-sale10", code: "SALE10", typ: "percentage",
			value:    decimal.NewFromInt(10),
			minOrder: decimal.NewFromInt(100000), maxDiscount: decimal.NewFromInt(20000),
		},
		{
			id: "disc-flat30", code: "FLAT30K", typ: "fixed_amount",
			value:    decimal.NewFromInt(30000),
			minOrder: decimal.NewFromInt(150000),
		},
		{
			id: "disc-vip15", code: "VIP15", typ: "percentage",
			value: decimal.NewFromInt(15),
			tiers: []string{"gold", "vip"},
		},
		{
			id: "disc-combo", code: "COMBO21", typ: "buy_x_get_y",
			buyQty: 2, freeProduct: "prod-iced-tea", freeQty: 1,
		},
	}

	for _, d := range discounts {
		tiers := d.tiers
		if tiers == nil {
			tiers = []string{}
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO discounts (
				id, code, type, value, min_order_amount, max_discount,
				customer_tiers, buy_quantity, free_product_id, free_quantity, active
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
			ON CONFLICT (code) DO UPDATE
			SET type = EXCLUDED.type, value = EXCLUDED.value,
			    min_order_amount = EXCLUDED.min_order_amount,
			    max_discount = EXCLUDED.max_discount,
			    customer_tiers = EXCLUDED.customer_tiers,
			    buy_quantity = EXCLUDED.buy_quantity,
			    free_product_id = EXCLUDED.free_product_id,
			    free_quantity = EXCLUDED.free_quantity,
			    active = TRUE`,
			d.id, d.code, d.typ, d.value, d.minOrder, d.maxDiscount,
			tiers, d.buyQty, d.freeProduct, d.freeQty,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.code)
		}
		slog.Info("upserted discount", slog.String("code", d.code), slog.String("type", d.typ))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API keys")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, role, employee_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name,
		    role = EXCLUDED.role, employee_id = EXCLUDED.employee_id`,
		"default", keyHash, "Default cashier key", "cashier", "emp-cashier",
	)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("role", "cashier"))

	return nil
}
