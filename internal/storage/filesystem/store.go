// Package filesystem 将访问码保存为单个 JSON 文件。
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mailcode/backend/internal/domain"
)

// Store 文件系统存储实现
//
// 所有记录常驻内存，每次修改后整体重写文件（先写临时文件再原子替换）。
type Store struct {
	mu    sync.RWMutex
	path  string
	codes map[string]*domain.AccessCode // id -> code
}

// NewStore 创建文件系统存储实例，文件不存在时创建空列表。
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("access code file path is required")
	}
	path = filepath.Clean(path)

	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		path:  path,
		codes: make(map[string]*domain.AccessCode),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.persistLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read access codes: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var list []*domain.AccessCode
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("failed to parse access codes: %w", err)
	}
	for _, c := range list {
		if c != nil && c.ID != "" {
			s.codes[c.ID] = c
		}
	}
	return nil
}

// persistLocked 调用方必须持有写锁
func (s *Store) persistLocked() error {
	list := make([]*domain.AccessCode, 0, len(s.codes))
	for _, c := range s.codes {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal access codes: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write access codes: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace access codes file: %w", err)
	}
	return nil
}

// CreateAccessCode 保存新访问码
func (s *Store) CreateAccessCode(_ context.Context, code *domain.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.codes {
		if c.Code == code.Code || c.ID == code.ID {
			return domain.ErrAccessCodeExists
		}
	}
	cp := *code
	s.codes[code.ID] = &cp
	if err := s.persistLocked(); err != nil {
		delete(s.codes, code.ID)
		return err
	}
	return nil
}

// GetAccessCodeByCode 按 code 查询未过期的访问码
func (s *Store) GetAccessCodeByCode(_ context.Context, code string, now time.Time) (*domain.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.codes {
		if c.Code == code && !c.Expired(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrAccessCodeNotFound
}

// ListAccessCodes 列出未过期的访问码，按过期时间升序
func (s *Store) ListAccessCodes(_ context.Context, now time.Time) ([]*domain.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AccessCode, 0, len(s.codes))
	for _, c := range s.codes {
		if !c.Expired(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// MarkAccessCodeUsed 标记已使用
func (s *Store) MarkAccessCodeUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[id]
	if !ok {
		return domain.ErrAccessCodeNotFound
	}
	if c.IsUsed {
		return nil
	}
	c.IsUsed = true
	if err := s.persistLocked(); err != nil {
		c.IsUsed = false
		return err
	}
	return nil
}

// DeleteAccessCode 删除访问码
func (s *Store) DeleteAccessCode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[id]
	if !ok {
		return domain.ErrAccessCodeNotFound
	}
	delete(s.codes, id)
	if err := s.persistLocked(); err != nil {
		s.codes[id] = c
		return err
	}
	return nil
}

// DeleteExpiredAccessCodes 清理过期访问码，返回删除数量
func (s *Store) DeleteExpiredAccessCodes(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]*domain.AccessCode)
	for id, c := range s.codes {
		if c.Expired(now) {
			removed[id] = c
			delete(s.codes, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		for id, c := range removed {
			s.codes[id] = c
		}
		return 0, err
	}
	return len(removed), nil
}

// Health 检查数据文件可读
func (s *Store) Health(_ context.Context) error {
	_, err := os.Stat(s.path)
	return err
}
