package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/luxora/storefront-api/internal/config"
)

// Store bundles the repositories of one storage backend.
type Store struct {
	Users      UserRepository
	Categories CategoryRepository
	Products   ProductRepository
	Orders     OrderRepository

	Driver string
	ping   func(ctx context.Context) error
	reset  func(ctx context.Context) error
	close  func()
}

func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Reset deletes every user, category, product and order.
func (s *Store) Reset(ctx context.Context) error { return s.reset(ctx) }

func (s *Store) Close() { s.close() }

// Open connects the backend selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageMongo:
		return openMongo(ctx, cfg.Mongo)
	default:
		return openPostgres(ctx, cfg.DB)
	}
}

func openPostgres(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		Users:      NewUserRepository(pool),
		Categories: NewCategoryRepository(pool),
		Products:   NewProductRepository(pool),
		Orders:     NewOrderRepository(pool),
		Driver:     config.StoragePostgres,
		ping:       pool.Ping,
		reset: func(ctx context.Context) error {
			_, err := pool.Exec(ctx, `TRUNCATE order_items, orders, products, categories, users CASCADE`)
			return err
		},
		close: pool.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := EnsureMongoIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Store{
		Users:      NewMongoUserRepository(db),
		Categories: NewMongoCategoryRepository(db),
		Products:   NewMongoProductRepository(db),
		Orders:     NewMongoOrderRepository(db),
		Driver:     config.StorageMongo,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		reset: func(ctx context.Context) error {
			for _, coll := range []string{ordersCollection, productsCollection, categoriesCollection, usersCollection} {
				if _, err := db.Collection(coll).DeleteMany(ctx, bson.D{}); err != nil {
					return fmt.Errorf("clear %s: %w", coll, err)
				}
			}
			return nil
		},
		close: func() { _ = client.Disconnect(context.Background()) },
	}, nil
}
