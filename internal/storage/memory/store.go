// Package memory 使用内存保存访问码，主要用于开发验证与测试。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mailcode/backend/internal/domain"
)

// Store 内存访问码存储
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*domain.AccessCode
	byCode map[string]string // code -> id
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*domain.AccessCode),
		byCode: make(map[string]string),
	}
}

// CreateAccessCode 保存新访问码
func (s *Store) CreateAccessCode(_ context.Context, code *domain.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byCode[code.Code]; exists {
		return domain.ErrAccessCodeExists
	}
	if _, exists := s.byID[code.ID]; exists {
		return domain.ErrAccessCodeExists
	}
	cp := *code
	s.byID[code.ID] = &cp
	s.byCode[code.Code] = code.ID
	return nil
}

// GetAccessCodeByCode 按 code 查询未过期的访问码
func (s *Store) GetAccessCodeByCode(_ context.Context, code string, now time.Time) (*domain.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, domain.ErrAccessCodeNotFound
	}
	c := s.byID[id]
	if c.Expired(now) {
		return nil, domain.ErrAccessCodeNotFound
	}
	cp := *c
	return &cp, nil
}

// ListAccessCodes 列出未过期的访问码
func (s *Store) ListAccessCodes(_ context.Context, now time.Time) ([]*domain.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AccessCode, 0, len(s.byID))
	for _, c := range s.byID {
		if c.Expired(now) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// MarkAccessCodeUsed 标记已使用
func (s *Store) MarkAccessCodeUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return domain.ErrAccessCodeNotFound
	}
	c.IsUsed = true
	return nil
}

// DeleteAccessCode 删除访问码
func (s *Store) DeleteAccessCode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return domain.ErrAccessCodeNotFound
	}
	delete(s.byCode, c.Code)
	delete(s.byID, id)
	return nil
}

// DeleteExpiredAccessCodes 清理过期访问码，返回删除数量
func (s *Store) DeleteExpiredAccessCodes(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, c := range s.byID {
		if c.Expired(now) {
			delete(s.byCode, c.Code)
			delete(s.byID, id)
			count++
		}
	}
	return count, nil
}
