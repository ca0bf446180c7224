// Package sql 基于 GORM 的访问码存储（支持 MySQL 5.7+ 和 PostgreSQL）。
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailcode/backend/internal/domain"
	pgclient "mailcode/backend/internal/storage/postgres"
)

// Config 数据库配置
type Config struct {
	Driver          string // "mysql" or "postgres"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// Store SQL 数据库存储实现
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string
	closeFn    func()
}

// NewStore 创建SQL数据库存储
//
// PostgreSQL 通过 pgx 连接池接入，MySQL 通过 go-sql-driver 接入。
func NewStore(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	var (
		db      *sql.DB
		closeFn func()
	)

	switch cfg.Driver {
	case "postgres":
		client, err := pgclient.New(ctx, pgclient.PoolConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, log)
		if err != nil {
			return nil, err
		}
		db = client.DB()
		closeFn = client.Close
	case "mysql":
		var err error
		db, err = sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// 设置连接池参数
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", cfg.Driver)
	}

	store, err := Open(cfg.Driver, db, cfg.AutoMigrate)
	if err != nil {
		db.Close()
		if closeFn != nil {
			closeFn()
		}
		return nil, err
	}
	store.closeFn = closeFn
	return store, nil
}

// Open 使用已打开的连接创建存储
func Open(driverName string, db *sql.DB, autoMigrate bool) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	switch driverName {
	case "postgres":
		dialector = postgres.New(postgres.Config{Conn: db})
	case "mysql":
		dialector = mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	if autoMigrate {
		if err := store.migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.closeFn != nil {
		s.closeFn()
	}
	return err
}

// Health 检查数据库健康状态
func (s *Store) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(&domain.AccessCode{})
}

// CreateAccessCode 保存新访问码
func (s *Store) CreateAccessCode(ctx context.Context, code *domain.AccessCode) error {
	if err := s.gormDB.WithContext(ctx).Create(code).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrAccessCodeExists
		}
		return fmt.Errorf("failed to create access code: %w", err)
	}
	return nil
}

// GetAccessCodeByCode 按 code 查询未过期的访问码
func (s *Store) GetAccessCodeByCode(ctx context.Context, code string, now time.Time) (*domain.AccessCode, error) {
	var c domain.AccessCode
	err := s.gormDB.WithContext(ctx).
		Where("code = ? AND expires_at > ?", code, now).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccessCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access code: %w", err)
	}
	return &c, nil
}

// ListAccessCodes 列出未过期的访问码，按过期时间升序
func (s *Store) ListAccessCodes(ctx context.Context, now time.Time) ([]*domain.AccessCode, error) {
	var list []*domain.AccessCode
	err := s.gormDB.WithContext(ctx).
		Where("expires_at > ?", now).
		Order("expires_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list access codes: %w", err)
	}
	return list, nil
}

// MarkAccessCodeUsed 标记已使用
func (s *Store) MarkAccessCodeUsed(ctx context.Context, id string) error {
	res := s.gormDB.WithContext(ctx).
		Model(&domain.AccessCode{}).
		Where("id = ?", id).
		Update("is_used", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark access code used: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccessCodeNotFound
	}
	return nil
}

// DeleteAccessCode 删除访问码
func (s *Store) DeleteAccessCode(ctx context.Context, id string) error {
	res := s.gormDB.WithContext(ctx).Where("id = ?", id).Delete(&domain.AccessCode{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete access code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccessCodeNotFound
	}
	return nil
}

// DeleteExpiredAccessCodes 清理过期访问码，返回删除数量
func (s *Store) DeleteExpiredAccessCodes(ctx context.Context, now time.Time) (int, error) {
	res := s.gormDB.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.AccessCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired access codes: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// isDuplicate 识别唯一约束冲突（PostgreSQL 23505 / MySQL 1062）
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
